package controllers

// publishReq represents a request to publish an event.
type publishReq struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// publishResp reports how many clients the event was queued for.
type publishResp struct {
	Queued int `json:"queued"`
}

// eventJSON is the SSE payload of one event.
type eventJSON struct {
	Name string `json:"name"`
	Data string `json:"data"`
}
