package automation

import "time"

// FolderKind values match OlDefaultFolders.
type FolderKind int

const (
	FolderDeletedItems FolderKind = 3
	FolderOutbox       FolderKind = 4
	FolderSentMail     FolderKind = 5
	FolderInbox        FolderKind = 6
	FolderCalendar     FolderKind = 9
	FolderTasks        FolderKind = 13
	FolderDrafts       FolderKind = 16
)

// ItemKind values match OlItemType.
type ItemKind int

const (
	ItemMail        ItemKind = 0
	ItemAppointment ItemKind = 1
	ItemTask        ItemKind = 3
)

// RecipientKind shares values between mail (To/CC/BCC) and meetings
// (Organizer/Required/Optional/Resource).
type RecipientKind int

const (
	RecipientOrganizer RecipientKind = 0
	RecipientTo        RecipientKind = 1
	RecipientCC        RecipientKind = 2
	RecipientBCC       RecipientKind = 3

	RecipientRequired = RecipientTo
	RecipientOptional = RecipientCC
	RecipientResource = RecipientBCC
)

// ResponseCode values match OlResponseStatus.
type ResponseCode int

const (
	ResponseNone         ResponseCode = 0
	ResponseOrganized    ResponseCode = 1
	ResponseTentative    ResponseCode = 2
	ResponseAccepted     ResponseCode = 3
	ResponseDeclined     ResponseCode = 4
	ResponseNotResponded ResponseCode = 5
)

// OlMeetingStatus.
const (
	MeetingNonMeeting          = 0
	MeetingMeeting             = 1
	MeetingReceived            = 3
	MeetingCanceled            = 5
	MeetingReceivedAndCanceled = 7
)

// OlTaskStatus.
const (
	TaskNotStarted = 0
	TaskInProgress = 1
	TaskComplete   = 2
	TaskWaiting    = 3
	TaskDeferred   = 4
)

// OlImportance.
const (
	ImportanceLow    = 0
	ImportanceNormal = 1
	ImportanceHigh   = 2
)

const (
	MessageClassMail        = "IPM.Note"
	MessageClassAppointment = "IPM.Appointment"
	MessageClassTask        = "IPM.Task"
)

// Property names as exposed by the object model.
const (
	PropEntryID            = "EntryID"
	PropMessageClass       = "MessageClass"
	PropSubject            = "Subject"
	PropBody               = "Body"
	PropHTMLBody           = "HTMLBody"
	PropSenderName         = "SenderName"
	PropSenderEmailAddress = "SenderEmailAddress"
	PropSenderEmailType    = "SenderEmailType"
	PropReceivedTime       = "ReceivedTime"
	PropUnread             = "Unread"
	PropSent               = "Sent"
	PropTo                 = "To"
	PropCC                 = "CC"
	PropBCC                = "BCC"
	PropStart              = "Start"
	PropEnd                = "End"
	PropLocation           = "Location"
	PropOrganizer          = "Organizer"
	PropAllDayEvent        = "AllDayEvent"
	PropRequiredAttendees  = "RequiredAttendees"
	PropOptionalAttendees  = "OptionalAttendees"
	PropResponseStatus     = "ResponseStatus"
	PropMeetingStatus      = "MeetingStatus"
	PropResponseRequested  = "ResponseRequested"
	PropIsRecurring        = "IsRecurring"
	PropDueDate            = "DueDate"
	PropStatus             = "Status"
	PropImportance         = "Importance"
	PropComplete           = "Complete"
	PropPercentComplete    = "PercentComplete"
)

// NoDate is the object model's stand-in for "no date" (January 1, 4501).
var NoDate = time.Date(4501, time.January, 1, 0, 0, 0, 0, time.Local)

// IsNoDate reports whether t is unset or the NoDate sentinel.
func IsNoDate(t time.Time) bool {
	return t.IsZero() || t.Year() >= 4500
}
