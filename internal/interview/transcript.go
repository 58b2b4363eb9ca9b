package interview

import (
	"encoding/json"

	"github.com/kalambet/elicit/internal/storage"
)

// Round is one interviewer question and the reply to it.
type Round struct {
	Index         int    `json:"round"`
	InterviewerID int64  `json:"interviewer_id,omitempty"`
	Interviewer   string `json:"interviewer,omitempty"`
	IntervieweeID int64  `json:"interviewee_id,omitempty"`
	Interviewee   string `json:"interviewee,omitempty"`
}

// Transcript is the conversation about one topic, oldest round first.
type Transcript []Round

// BuildTranscript groups messages into rounds. Each interviewer message opens
// a round; a reply that finds its round already answered opens a new one.
func BuildTranscript(msgs []storage.Message) Transcript {
	var t Transcript
	for _, m := range msgs {
		switch m.Role {
		case storage.RoleInterviewer:
			t = append(t, Round{Index: len(t) + 1, InterviewerID: m.ID, Interviewer: m.Content})
		case storage.RoleInterviewee:
			if len(t) == 0 || t[len(t)-1].IntervieweeID != 0 {
				t = append(t, Round{Index: len(t) + 1})
			}
			t[len(t)-1].IntervieweeID = m.ID
			t[len(t)-1].Interviewee = m.Content
		}
	}
	return t
}

// LatestTurnIDs returns the message ids of the last round.
func (t Transcript) LatestTurnIDs() []int64 {
	if len(t) == 0 {
		return nil
	}
	last := t[len(t)-1]
	var ids []int64
	for _, id := range []int64{last.InterviewerID, last.IntervieweeID} {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// LatestReply returns the interviewee text of the last round.
func (t Transcript) LatestReply() string {
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1].Interviewee
}

func (t Transcript) render() string {
	if len(t) == 0 {
		return "[]"
	}
	data, _ := json.MarshalIndent(t, "", "  ")
	return string(data)
}
