package search

type Args struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults,omitempty"`
	Under      string `json:"under,omitempty"`
}

func (a *Args) Validate() error {
	if a.Query == "" {
		return ErrQueryRequired
	}
	if a.MaxResults < 0 {
		return ErrInvalidMaxResults
	}
	return nil
}

// Match is one matching line.
type Match struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}
