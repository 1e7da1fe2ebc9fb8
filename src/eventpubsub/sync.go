package eventpubsub

import "fmt"

type Stage struct {
	Name string
	Fn   func() error
}

// StagedProcess runs named stages in order and stops on the first failure.
// Used by multi-phase jobs such as market data downloads, where each phase
// depends on the previous one having completed.
type StagedProcess struct {
	stages []Stage
}

func (s *StagedProcess) Add(name string, fn func() error) {
	s.stages = append(s.stages, Stage{Name: name, Fn: fn})
}

func (s *StagedProcess) Run() error {
	for _, stage := range s.stages {
		if err := stage.Fn(); err != nil {
			return fmt.Errorf("StagedProcess.Run: stage %s: %w", stage.Name, err)
		}
	}

	return nil
}
