package strategies

// Parameter defaults mirror the production tuning for BTCUSDT 4h funding
// divergence, SOLUSDT 1h squeeze breakouts and BTCUSDT 1h mean reversion.

type FundingDivergenceParams struct {
	TrendEmaPeriod        int     `yaml:"trend_ema_period"`
	FundingLongThreshold  float64 `yaml:"funding_long_threshold"`
	FundingShortThreshold float64 `yaml:"funding_short_threshold"`
	StopAtrMultiplier     float64 `yaml:"stop_atr_multiplier"`
	TargetAtrMultiplier   float64 `yaml:"target_atr_multiplier"`
	MaxHoldDays           int     `yaml:"max_hold_days"`
	OiDropThreshold       float64 `yaml:"oi_drop_threshold"`
	MinAtrRatio           float64 `yaml:"min_atr_ratio"`
	MaxAtrRatio           float64 `yaml:"max_atr_ratio"`
	Leverage              float64 `yaml:"leverage"`
}

func DefaultFundingDivergenceParams() FundingDivergenceParams {
	return FundingDivergenceParams{
		TrendEmaPeriod: 200,

		// 20th and 80th percentile of historical funding
		FundingLongThreshold:  0.000038,
		FundingShortThreshold: 0.000100,

		StopAtrMultiplier:   3.0,
		TargetAtrMultiplier: 4.0,
		MaxHoldDays:         7,
		OiDropThreshold:     -0.05,
		MinAtrRatio:         0.8,
		MaxAtrRatio:         1.5,
		Leverage:            3,
	}
}

type SqueezeBreakoutParams struct {
	BollingerPeriod   int     `yaml:"bollinger_period"`
	SqueezeMinCandles int     `yaml:"squeeze_min_candles"`
	SqueezeThreshold  float64 `yaml:"squeeze_threshold"`
	VolumeMultiplier  float64 `yaml:"volume_multiplier"`
	AdxThreshold      float64 `yaml:"adx_threshold"`
	StopAtrMultiplier float64 `yaml:"stop_atr_multiplier"`
	Tp1AtrMultiplier  float64 `yaml:"tp1_atr_multiplier"`
	Tp2AtrMultiplier  float64 `yaml:"tp2_atr_multiplier"`
	Leverage          float64 `yaml:"leverage"`
}

func DefaultSqueezeBreakoutParams() SqueezeBreakoutParams {
	return SqueezeBreakoutParams{
		BollingerPeriod:   20,
		SqueezeMinCandles: 12,
		SqueezeThreshold:  0.03,
		VolumeMultiplier:  1.5,
		AdxThreshold:      20,
		StopAtrMultiplier: 2.0,
		Tp1AtrMultiplier:  2.0,
		Tp2AtrMultiplier:  4.0,
		Leverage:          5,
	}
}

type MeanReversionParams struct {
	TrendEmaPeriod    int     `yaml:"trend_ema_period"`
	BollingerPeriod   int     `yaml:"bollinger_period"`
	RsiOversold       float64 `yaml:"rsi_oversold"`
	RsiOverbought     float64 `yaml:"rsi_overbought"`
	RsiExtremeLow     float64 `yaml:"rsi_extreme_low"`
	RsiExtremeHigh    float64 `yaml:"rsi_extreme_high"`
	SwingLookback     int     `yaml:"swing_lookback"`
	SwingTolerance    float64 `yaml:"swing_tolerance"`
	VolumeMaPeriod    int     `yaml:"volume_ma_period"`
	VolumeSpikeMult   float64 `yaml:"volume_spike_mult"`
	StopAtrMultiplier float64 `yaml:"stop_atr_multiplier"`
	Tp2AtrMultiplier  float64 `yaml:"tp2_atr_multiplier"`
	MaxHoldHours      int     `yaml:"max_hold_hours"`
	MinAtrRatio       float64 `yaml:"min_atr_ratio"`
	MaxAtrRatio       float64 `yaml:"max_atr_ratio"`
	Leverage          float64 `yaml:"leverage"`
}

func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		TrendEmaPeriod:  200,
		BollingerPeriod: 20,

		// oversold but not a falling knife, overbought but not parabolic
		RsiOversold:    45,
		RsiOverbought:  55,
		RsiExtremeLow:  25,
		RsiExtremeHigh: 75,

		SwingLookback:     20,
		SwingTolerance:    0.01,
		VolumeMaPeriod:    20,
		VolumeSpikeMult:   1.2,
		StopAtrMultiplier: 2.5,
		Tp2AtrMultiplier:  3.0,
		MaxHoldHours:      48,
		MinAtrRatio:       0.8,
		MaxAtrRatio:       1.5,
		Leverage:          3,
	}
}
