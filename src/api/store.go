package api

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/crypto-backtest/src/models"
	"github.com/jiaming2012/crypto-backtest/src/performance"
	"github.com/jiaming2012/crypto-backtest/src/utils"
)

// Store reads run artifacts from a results directory. It holds no state
// beyond the directory path, so runs written while the server is up are
// picked up on the next request.
type Store struct {
	resultsDir string
}

func NewStore(resultsDir string) *Store {
	return &Store{resultsDir: resultsDir}
}

// ListRuns scans the results directory for run folders, newest first.
// Folders without a readable run file are skipped.
func (s *Store) ListRuns() ([]*utils.RunInfo, error) {
	entries, err := os.ReadDir(s.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("Store.ListRuns: %w", err)
	}

	runs := make([]*utils.RunInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := utils.ReadRunInfo(filepath.Join(s.resultsDir, entry.Name()))
		if err != nil {
			log.Warnf("Store.ListRuns: skipping %s: %v", entry.Name(), err)
			continue
		}

		runs = append(runs, info)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}

func (s *Store) runDir(tag string) string {
	return filepath.Join(s.resultsDir, tag)
}

func (s *Store) Metrics(tag string) (*performance.Metrics, error) {
	return utils.ReadMetrics(s.runDir(tag))
}

func (s *Store) Trades(tag string) ([]*models.TradeRecord, error) {
	return utils.ReadTradeRecords(s.runDir(tag))
}

func (s *Store) Equity(tag string) (models.EquityCurve, error) {
	return utils.ReadEquityCurve(s.runDir(tag))
}
