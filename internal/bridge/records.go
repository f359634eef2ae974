package bridge

import "time"

type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type Email struct {
	EntryID        string     `json:"entry_id"`
	Subject        string     `json:"subject"`
	Sender         Address    `json:"sender"`
	To             []Address  `json:"to,omitempty"`
	CC             []Address  `json:"cc,omitempty"`
	BCC            []Address  `json:"bcc,omitempty"`
	ReceivedTime   *time.Time `json:"received_time,omitempty"`
	Unread         bool       `json:"unread"`
	HasAttachments bool       `json:"has_attachments"`
	Body           string     `json:"body,omitempty"`
	HTMLBody       string     `json:"html_body,omitempty"`
	Folder         string     `json:"folder,omitempty"`
	Sent           bool       `json:"sent"`
}

type ResponseStatus string

const (
	ResponseOrganizer  ResponseStatus = "Organizer"
	ResponseAccepted   ResponseStatus = "Accepted"
	ResponseDeclined   ResponseStatus = "Declined"
	ResponseTentative  ResponseStatus = "Tentative"
	ResponseNoResponse ResponseStatus = "NoResponse"
)

type MeetingStatus string

const (
	MeetingPlain          MeetingStatus = "Plain"
	MeetingReceivedInvite MeetingStatus = "ReceivedInvite"
	MeetingCanceled       MeetingStatus = "Canceled"
	MeetingNonMeeting     MeetingStatus = "NonMeeting"
)

type Attendee struct {
	Name     string          `json:"name,omitempty"`
	Address  string          `json:"address"`
	Response *ResponseStatus `json:"response,omitempty"`
}

type Appointment struct {
	EntryID           string          `json:"entry_id"`
	Subject           string          `json:"subject"`
	Start             *time.Time      `json:"start,omitempty"`
	End               *time.Time      `json:"end,omitempty"`
	Location          string          `json:"location,omitempty"`
	Organizer         string          `json:"organizer,omitempty"`
	AllDay            bool            `json:"all_day"`
	RequiredAttendees []Attendee      `json:"required_attendees,omitempty"`
	OptionalAttendees []Attendee      `json:"optional_attendees,omitempty"`
	ResponseStatus    *ResponseStatus `json:"response_status,omitempty"`
	MeetingStatus     *MeetingStatus  `json:"meeting_status,omitempty"`
	ResponseRequested bool            `json:"response_requested"`
	Body              string          `json:"body,omitempty"`
	Recurring         bool            `json:"recurring"`
}

type TaskStatus string

const (
	TaskNotStarted TaskStatus = "NotStarted"
	TaskInProgress TaskStatus = "InProgress"
	TaskComplete   TaskStatus = "Complete"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
)

type Task struct {
	EntryID         string      `json:"entry_id"`
	Subject         string      `json:"subject"`
	Body            string      `json:"body,omitempty"`
	DueDate         *time.Time  `json:"due_date,omitempty"`
	Status          *TaskStatus `json:"status,omitempty"`
	Priority        *Priority   `json:"priority,omitempty"`
	Complete        bool        `json:"complete"`
	PercentComplete int         `json:"percent_complete"`
}

type Folder struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Count int    `json:"count"`
}

type BusyStatus string

const (
	BusyFree             BusyStatus = "Free"
	BusyTentative        BusyStatus = "Tentative"
	BusyBusy             BusyStatus = "Busy"
	BusyOutOfOffice      BusyStatus = "OutOfOffice"
	BusyWorkingElsewhere BusyStatus = "WorkingElsewhere"
)

type Slot struct {
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Status BusyStatus `json:"status"`
}

type FreeBusy struct {
	Address         string    `json:"address"`
	Resolved        bool      `json:"resolved"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	IntervalMinutes int       `json:"interval_minutes"`
	Slots           []Slot    `json:"slots,omitempty"`
}
