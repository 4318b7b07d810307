package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ExpType identifies the stimulus modality of a session.
type ExpType int

// Stimulus modalities, as stored in the GUI_ExperimentType column.
const (
	LightIntensity ExpType = 2
	RDK            ExpType = 4
)

// String returns the modality name.
func (e ExpType) String() string {
	switch e {
	case LightIntensity:
		return "LightIntensity"
	case RDK:
		return "RDK"
	}
	return fmt.Sprintf("ExpType(%d)", int(e))
}

// Day is a calendar date encoded as "2006-01-02".
type Day struct{ time.Time }

const dayLayout = "2006-01-02"

// ParseDay parses a "2006-01-02" date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, err
	}
	return Day{t}, nil
}

// MarshalJSON implements json.Marshaler.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dayLayout))
}

// UnmarshalJSON accepts "2006-01-02" and full RFC 3339 timestamps.
func (d *Day) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if len(s) > len(dayLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Flag is a boolean column that trial exports write as true/false or 0/1.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true":
		*f = true
		return nil
	case "false", "null":
		*f = false
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("flag: %s is neither a boolean nor a number", b)
	}
	*f = Flag(n != 0 && !math.IsNaN(n))
	return nil
}

// Trial is one row of a session log. Nullable columns are pointers.
type Trial struct {
	Name        string `json:"Name"`
	Date        Day    `json:"Date"`
	SessionNum  int    `json:"SessionNum"`
	TrialNumber int    `json:"TrialNumber"`
	MaxTrial    int    `json:"MaxTrial"`

	ChoiceLeft     *float64 `json:"ChoiceLeft"`
	ChoiceCorrect  *float64 `json:"ChoiceCorrect"`
	ForcedLEDTrial Flag     `json:"ForcedLEDTrial"`
	LeftRewarded   Flag     `json:"LeftRewarded"`
	DV             float64  `json:"DV"`

	MinSample           float64 `json:"MinSample"`
	ST                  float64 `json:"ST"`
	MT                  float64 `json:"MT"`
	ReactionTime        float64 `json:"ReactionTime"`
	FeedbackTime        float64 `json:"FeedbackTime"`
	EarlyWithdrawal     Flag    `json:"EarlyWithdrawal"`
	CatchTrial          Flag    `json:"CatchTrial"`
	SessionPerformance  float64 `json:"SessionPerformance"`
	TrialStartTimestamp float64 `json:"TrialStartTimestamp"`

	ExperimentType         ExpType  `json:"GUI_ExperimentType"`
	CatchError             Flag     `json:"GUI_CatchError"`
	FeedbackDelaySelection int      `json:"GUI_FeedbackDelaySelection"`
	FeedbackDelayMax       float64  `json:"GUI_FeedbackDelayMax"`
	StimAfterPokeOut       Flag     `json:"GUI_StimAfterPokeOut"`
	Difficulty1            *float64 `json:"Difficulty1"`
	Difficulty2            *float64 `json:"Difficulty2"`
	Difficulty3            *float64 `json:"Difficulty3"`
	Difficulty4            *float64 `json:"Difficulty4"`
}

// Difficulties returns the four difficulty columns in order.
func (t *Trial) Difficulties() [4]*float64 {
	return [4]*float64{t.Difficulty1, t.Difficulty2, t.Difficulty3, t.Difficulty4}
}

// Chose reports whether the animal made a choice in this trial.
func (t *Trial) Chose() bool { return t.ChoiceLeft != nil && !math.IsNaN(*t.ChoiceLeft) }

// Correct reports whether the choice was correct; false when no choice was scored.
func (t *Trial) Correct() bool { return t.ChoiceCorrect != nil && *t.ChoiceCorrect == 1 }

// Incorrect reports whether the choice was scored wrong.
func (t *Trial) Incorrect() bool { return t.ChoiceCorrect != nil && *t.ChoiceCorrect == 0 }

// CaughtCorrect reports a correct choice on a catch trial, where the reward
// was withheld and the waiting time measures confidence.
func (t *Trial) CaughtCorrect() bool { return bool(t.CatchTrial) && t.Correct() }

// Scored reports whether ChoiceCorrect is present.
func (t *Trial) Scored() bool { return t.ChoiceCorrect != nil && !math.IsNaN(*t.ChoiceCorrect) }

// Animals returns the distinct animal names in first-seen order.
func Animals(trials []Trial) []string {
	var names []string
	seen := make(map[string]bool)
	for i := range trials {
		if n := trials[i].Name; !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

// FilterAnimal returns the trials of one animal.
func FilterAnimal(trials []Trial, name string) []Trial {
	var out []Trial
	for i := range trials {
		if trials[i].Name == name {
			out = append(out, trials[i])
		}
	}
	return out
}

// SessionKey identifies one session of one day.
type SessionKey struct {
	Date       Day
	SessionNum int
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s-SessNum:%d", k.Date.Format(dayLayout), k.SessionNum)
}

// Session is the trials of one session in trial order.
type Session struct {
	Key    SessionKey
	Trials []Trial
}

// Sessions groups trials by (Date, SessionNum), sorted chronologically.
func Sessions(trials []Trial) []Session {
	idx := make(map[SessionKey]int)
	var out []Session
	for _, t := range sortedTrials(trials) {
		k := SessionKey{Date: t.Date, SessionNum: t.SessionNum}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Session{Key: k})
		}
		out[i].Trials = append(out[i].Trials, t)
	}
	return out
}

// sortedTrials returns a copy ordered by date, session and trial number.
func sortedTrials(trials []Trial) []Trial {
	out := slices.Clone(trials)
	slices.SortStableFunc(out, func(a, b Trial) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if a.SessionNum != b.SessionNum {
			return a.SessionNum - b.SessionNum
		}
		return a.TrialNumber - b.TrialNumber
	})
	return out
}

// joinNames joins the distinct animal names with spaces.
func joinNames(trials []Trial) string {
	return strings.Join(Animals(trials), " ")
}
