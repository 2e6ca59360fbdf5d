package api

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateMethodRequest describes a new method. Send defaults to true when omitted.
type CreateMethodRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Send  *bool  `json:"send,omitempty"`
}

func (r CreateMethodRequest) shouldSend() bool {
	return r.Send == nil || *r.Send
}

// CreateMethodResponse carries the new method id. DeliveryError is set when
// the method was stored but its first token could not be delivered.
type CreateMethodResponse struct {
	ID            string `json:"id"`
	Delivered     bool   `json:"delivered"`
	DeliveryError string `json:"delivery_error,omitempty"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type DisableMethodRequest struct {
	Remove bool `json:"remove"`
}

type EnabledMethodResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	MaskedValue string `json:"masked_value"`
}

type ListMethodsResponse struct {
	Methods []EnabledMethodResponse `json:"methods"`
}

type CheckTokenResponse struct {
	Valid bool `json:"valid"`
}

type SendTokenResponse struct {
	Delivered bool `json:"delivered"`
}

type SuccessResponse struct {
	Result string `json:"result"`
}
