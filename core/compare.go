package core

import (
	"context"
	"fmt"
)

// Comparison is the outcome of running one robot over a task set.
type Comparison struct {
	Robot        string
	Runs         int
	TotalTurns   int
	AverageTurns float64
}

// CompareRobots runs every robot on the same tasks, starting each run with
// nil memory, and reports the average number of turns per robot in the order
// the robots were given. The first failing run aborts the comparison.
func CompareRobots(ctx context.Context, engine *SimulationEngine, tasks []WorldState, robots ...Robot) ([]Comparison, error) {
	results := make([]Comparison, 0, len(robots))
	for _, robot := range robots {
		cmp := Comparison{Robot: RobotName(robot)}
		for i, task := range tasks {
			report, err := engine.Run(ctx, task, robot, nil)
			if err != nil {
				return nil, fmt.Errorf("compare %s task %d: %w", cmp.Robot, i, err)
			}
			cmp.Runs++
			cmp.TotalTurns += report.Turns
		}
		if cmp.Runs > 0 {
			cmp.AverageTurns = float64(cmp.TotalTurns) / float64(cmp.Runs)
		}
		results = append(results, cmp)
	}
	return results, nil
}
