package domain

import "context"

// RunnerPort runs the long-lived bus subscription
type RunnerPort interface {
	Run(ctx context.Context) error
}
