package record

type (
	StopRequest struct {
		Filename string `json:"filename" form:"filename"`
	}

	StopResult struct {
		MeetingID string `json:"meeting_id"`
		Filename  string `json:"filename"`
	}

	DiscardResult struct {
		MeetingID string `json:"meeting_id"`
		Discarded bool   `json:"discarded"`
	}
)
