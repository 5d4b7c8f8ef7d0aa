package shell

type RunArgs struct {
	Cmd        string `json:"cmd"`
	Cwd        string `json:"cwd,omitempty"`
	TimeoutSec int    `json:"timeoutSec,omitempty"`
}

func (a *RunArgs) Validate() error {
	if a.Cmd == "" {
		return ErrCommandRequired
	}
	if a.TimeoutSec < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

type KillArgs struct {
	Handle string `json:"handle,omitempty"`
}
