package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"mailbridge/internal/bridge"
)

const timeLayout = "2006-01-02 15:04"

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

func senderOf(a bridge.Address) string {
	if a.Name != "" && a.Name != a.Address {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return a.Address
}

func printEmails(out io.Writer, emails []bridge.Email) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY ID\tRECEIVED\tFROM\tSUBJECT\t")
	for _, e := range emails {
		flag := ""
		if e.Unread {
			flag = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.EntryID, formatTime(e.ReceivedTime), senderOf(e.Sender), e.Subject, flag)
	}
	_ = tw.Flush()
}

func printEmail(out io.Writer, e bridge.Email) {
	fmt.Fprintf(out, "Entry ID: %s\n", e.EntryID)
	if e.Subject != "" {
		fmt.Fprintf(out, "Subject: %s\n", e.Subject)
	}
	if e.Sender.Address != "" {
		fmt.Fprintf(out, "From: %s\n", senderOf(e.Sender))
	}
	for _, line := range []struct {
		label string
		list  []bridge.Address
	}{{"To", e.To}, {"Cc", e.CC}, {"Bcc", e.BCC}} {
		if len(line.list) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s: ", line.label)
		for i, a := range line.list {
			if i > 0 {
				fmt.Fprint(out, ", ")
			}
			fmt.Fprint(out, senderOf(a))
		}
		fmt.Fprintln(out)
	}
	if e.ReceivedTime != nil {
		fmt.Fprintf(out, "Date: %s\n", e.ReceivedTime.Format("2006-01-02 15:04:05 -0700"))
	}
	if e.HasAttachments {
		fmt.Fprintln(out, "Attachments: yes")
	}
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, e.Body)
}

func printAppointments(out io.Writer, appts []bridge.Appointment) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY ID\tSTART\tEND\tSUBJECT\tLOCATION\tRESPONSE")
	for _, a := range appts {
		resp := ""
		if a.ResponseStatus != nil {
			resp = string(*a.ResponseStatus)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.EntryID, formatTime(a.Start), formatTime(a.End), a.Subject, a.Location, resp)
	}
	_ = tw.Flush()
}

func printAppointment(out io.Writer, a bridge.Appointment) {
	fmt.Fprintf(out, "Entry ID: %s\n", a.EntryID)
	fmt.Fprintf(out, "Subject: %s\n", a.Subject)
	fmt.Fprintf(out, "Start: %s\n", formatTime(a.Start))
	fmt.Fprintf(out, "End: %s\n", formatTime(a.End))
	if a.Location != "" {
		fmt.Fprintf(out, "Location: %s\n", a.Location)
	}
	if a.Organizer != "" {
		fmt.Fprintf(out, "Organizer: %s\n", a.Organizer)
	}
	if a.ResponseStatus != nil {
		fmt.Fprintf(out, "Response: %s\n", *a.ResponseStatus)
	}
	for _, group := range []struct {
		label string
		list  []bridge.Attendee
	}{{"Required", a.RequiredAttendees}, {"Optional", a.OptionalAttendees}} {
		for _, at := range group.list {
			resp := ""
			if at.Response != nil {
				resp = " (" + string(*at.Response) + ")"
			}
			fmt.Fprintf(out, "%s: %s%s\n", group.label, senderOf(bridge.Address{Name: at.Name, Address: at.Address}), resp)
		}
	}
	if a.Body != "" {
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, a.Body)
	}
}

func printTasks(out io.Writer, tasks []bridge.Task) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY ID\tDUE\tSTATUS\tPRIORITY\tDONE\tSUBJECT")
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		status, priority := "", ""
		if t.Status != nil {
			status = string(*t.Status)
		}
		if t.Priority != nil {
			priority = string(*t.Priority)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\n", t.EntryID, due, status, priority, t.PercentComplete, t.Subject)
	}
	_ = tw.Flush()
}

func printFolders(out io.Writer, folders []bridge.Folder) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tITEMS")
	for _, f := range folders {
		fmt.Fprintf(tw, "%s\t%d\n", f.Path, f.Count)
	}
	_ = tw.Flush()
}

func printFreeBusy(out io.Writer, fb bridge.FreeBusy) {
	if !fb.Resolved {
		fmt.Fprintf(out, "%s could not be resolved.\n", fb.Address)
		return
	}
	fmt.Fprintf(out, "%s, %s to %s, %d minute intervals\n", fb.Address, fb.Start.Format(timeLayout), fb.End.Format(timeLayout), fb.IntervalMinutes)
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tSTATUS")
	for _, s := range fb.Slots {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Start.Format(timeLayout), s.End.Format(timeLayout), s.Status)
	}
	_ = tw.Flush()
}

// printSendResult reports where an outgoing item ended up.
func printSendResult(out io.Writer, r bridge.SendResult) {
	if r.EntryID != "" {
		fmt.Fprintf(out, "Draft saved: %s\n", r.EntryID)
		return
	}
	fmt.Fprintln(out, "Sent.")
}

// emit prints v as JSON under --json and through human otherwise.
func (a *appContext) emit(out io.Writer, v any, human func()) error {
	if a.json {
		return printJSON(out, v)
	}
	human()
	return nil
}
