// Package filler computes environmental values for catalog samples and
// potential maps over a region.
package filler

import (
	"sort"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// Task is one (sample, relative position) evaluation.
type Task struct {
	Sample   *model.Sample
	Position *model.RelativePosition
	// Time orders the tasks: the sample time shifted by the typical offset
	// of the position.
	Time time.Time
}

// BuildTasks pairs every sample with every position and sorts the pairs by
// ascending evaluation time, so that consecutive evaluations read the same
// or adjacent raster slices. With no positions each sample is evaluated at
// its own location once.
func BuildTasks(samples []*model.Sample, positions []*model.RelativePosition) []Task {
	if len(positions) == 0 {
		positions = []*model.RelativePosition{nil}
	}
	tasks := make([]Task, 0, len(samples)*len(positions))
	for _, s := range samples {
		for _, p := range positions {
			tasks = append(tasks, Task{
				Sample:   s,
				Position: p,
				Time:     s.Time.Add(p.TypicalTimeOffset()),
			})
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Time.Before(tasks[j].Time)
	})
	return tasks
}
