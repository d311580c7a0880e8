package round

// Event is one frame of the round lifecycle stream. Name is the SSE event
// name; Data marshals to the frame's JSON payload.
type Event struct {
	Name string
	Data any
}

type RoundStartData struct {
	Round int `json:"round"`
}

type ModelStartData struct {
	Model       string `json:"model"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

type TokenData struct {
	Content string `json:"content"`
}

type ModelErrorData struct {
	Model   string `json:"model"`
	Error   string `json:"error"`
	Skipped bool   `json:"skipped"`
}

type ModelEndData struct {
	Model  string `json:"model"`
	Status string `json:"status"`
}

type TitleGeneratedData struct {
	Title string `json:"title"`
}

type RoundEndData struct {
	Round            int  `json:"round"`
	AwaitingDecision bool `json:"awaiting_decision"`
}

type SessionEndData struct {
	Status string `json:"status"`
}

func roundStart(round int) Event {
	return Event{Name: "round_start", Data: RoundStartData{Round: round}}
}

func modelStart(model, displayName, color string) Event {
	return Event{Name: "model_start", Data: ModelStartData{Model: model, DisplayName: displayName, Color: color}}
}

func token(content string) Event {
	return Event{Name: "token", Data: TokenData{Content: content}}
}

func modelError(model, message string) Event {
	return Event{Name: "model_error", Data: ModelErrorData{Model: model, Error: message, Skipped: true}}
}

func modelEnd(model, status string) Event {
	return Event{Name: "model_end", Data: ModelEndData{Model: model, Status: status}}
}

func titleGenerated(title string) Event {
	return Event{Name: "title_generated", Data: TitleGeneratedData{Title: title}}
}

func roundEnd(round int) Event {
	return Event{Name: "round_end", Data: RoundEndData{Round: round, AwaitingDecision: true}}
}

func sessionEnd() Event {
	return Event{Name: "session_end", Data: SessionEndData{Status: "consensus_reached"}}
}
