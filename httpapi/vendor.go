package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dazedpro/claude-cli-proxy/types"
)

// vendorMessage is one element of an Anthropic-Messages-shaped body.
type vendorMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// vendorRequest is the second, vendor-compatible request shape named in
// spec §1/§4.5 as an out-of-scope translation collaborator. It is a pure,
// stateless transform into types.Request with no dependency on scheduler
// internals.
type vendorRequest struct {
	Model     string          `json:"model"`
	System    string          `json:"system,omitempty"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Messages  []vendorMessage `json:"messages"`
}

// vendorResponse mirrors the shape of an Anthropic Messages API response
// closely enough for drop-in vendor-compatible clients.
type vendorResponse struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Model   string               `json:"model,omitempty"`
	Content []vendorContentBlock `json:"content"`
	Usage   vendorUsage          `json:"usage"`
	Error   *vendorErrorBody     `json:"error,omitempty"`
}

type vendorContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type vendorUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type vendorErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// toRequest flattens the vendor message list into a single prompt: the
// last user-role message becomes the prompt and the top-level system field
// becomes the system prompt. All other messages are dropped. This is
// a pragmatic flattening, not a claim of full Messages-API semantics —
// the internal core speaks a single flat prompt, per spec §3.
func (v vendorRequest) toRequest() types.Request {
	prompt := ""
	for i := len(v.Messages) - 1; i >= 0; i-- {
		if v.Messages[i].Role == "user" {
			prompt = v.Messages[i].Content
			break
		}
	}
	return types.Request{
		Prompt:       prompt,
		Model:        v.Model,
		SystemPrompt: v.System,
	}
}

func toVendorResponse(reqID string, resp types.Response) vendorResponse {
	if resp.Kind != types.KindSuccess {
		return vendorResponse{
			ID:   "msg_" + reqID,
			Type: "error",
			Error: &vendorErrorBody{
				Type:    string(resp.Kind),
				Message: resp.Error,
			},
		}
	}
	return vendorResponse{
		ID:      "msg_" + reqID,
		Type:    "message",
		Role:    "assistant",
		Model:   resp.Model,
		Content: []vendorContentBlock{{Type: "text", Text: resp.Text}},
		Usage:   vendorUsage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
	}
}

func (s *Server) handleVendorMessages(w http.ResponseWriter, r *http.Request) {
	var v vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request: "+err.Error())
		return
	}

	req := v.toRequest()
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request: "+err.Error())
		return
	}

	resp := s.sched.Submit(req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(toVendorResponse(resp.ReqID, resp))
}
