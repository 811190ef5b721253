package pipeline

import "context"

// Health is a point-in-time view of the service and its dependencies.
type Health struct {
	Status      Status   `json:"status"`
	Ready       bool     `json:"ready"`
	ModelServer bool     `json:"model_server"`
	Index       bool     `json:"index"`
	Warnings    []string `json:"warnings,omitempty"`
}

// CheckHealth probes the live dependencies. It works in every lifecycle
// state so operators can see what is wrong while startup is failing.
func (s *Service) CheckHealth(ctx context.Context) Health {
	h := Health{
		Status:   s.Status(),
		Ready:    s.Status().Ready(),
		Warnings: s.Warnings(),
	}

	if err := s.models.Ping(ctx); err == nil {
		h.ModelServer = true
	}
	if _, err := s.index.ChunkCount(ctx); err == nil {
		h.Index = true
	}

	// A live check trumps the recorded status: a dependency that died
	// after startup flips Ready off even though status stays success.
	if !h.ModelServer || !h.Index {
		h.Ready = false
	}
	return h
}
