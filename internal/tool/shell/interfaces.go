package shell

import (
	"context"

	"github.com/Cyclone1070/aicoder/internal/tool/service/executor"
)

type commandRunner interface {
	Run(ctx context.Context, spec executor.Spec) (*executor.Result, error)
}

type processTable interface {
	Kill(handle string) (bool, error)
	List() []executor.Process
}

type guard interface {
	Resolve(p string) (abs, rel string, err error)
	Root() string
}
