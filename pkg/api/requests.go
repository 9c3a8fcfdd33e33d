package api

// SubmitResearchRequest is the HTTP request body for POST /api/research.
type SubmitResearchRequest struct {
	Query     string `json:"query" binding:"required"`
	Depth     string `json:"depth,omitempty"`
	Context   string `json:"context,omitempty"`
	Priority  int    `json:"priority,omitempty"`
	Trigger   string `json:"trigger,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// HookRequest is the HTTP request body for POST /api/hook, sent by the
// assistant's lifecycle hooks after every prompt and tool call.
type HookRequest struct {
	SessionID  string `json:"sessionId" binding:"required"`
	Trigger    string `json:"trigger" binding:"required"`
	Payload    string `json:"payload"`
	WorkingDir string `json:"workingDir,omitempty"`
}
