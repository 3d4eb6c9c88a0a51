package chat

import (
	"encoding/json"
)

// ModelInfo is what the server reports about the model behind the completion
// endpoint. Keys other than status and model are kept in Extra.
type ModelInfo struct {
	Status string                 `json:"status,omitempty"`
	Model  string                 `json:"model"`
	Extra  map[string]interface{} `json:"-"`
}

func (m *ModelInfo) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = ModelInfo{}
	if v, ok := raw["status"].(string); ok {
		m.Status = v
	}
	if v, ok := raw["model"].(string); ok {
		m.Model = v
	}
	delete(raw, "status")
	delete(raw, "model")
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

func (m ModelInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Status != "" {
		out["status"] = m.Status
	}
	out["model"] = m.Model
	return json.Marshal(out)
}
