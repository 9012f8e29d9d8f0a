package recorder

type Stats struct {
	MeetingID    string `json:"meeting_id"`
	BytesWritten uint64 `json:"bytes_written"`
	Finalizing   bool   `json:"finalizing"`
	VideoCodec   string `json:"video_codec"`
	AudioCodec   string `json:"audio_codec,omitempty"`
}

// ActiveStats reports the active session, if any.
func (r *Service) ActiveStats() (*Stats, bool) {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()

	if s == nil {
		return nil, false
	}
	return &Stats{
		MeetingID:    s.meetingID,
		BytesWritten: s.bytesWritten.Load(),
		Finalizing:   s.finalizing.Load(),
		VideoCodec:   s.plan.Video,
		AudioCodec:   s.plan.Audio,
	}, true
}

// IsActive reports whether meetingID owns the active session.
func (r *Service) IsActive(meetingID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil && r.active.meetingID == meetingID
}
