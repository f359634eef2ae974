package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newCalendarCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calendar",
		Aliases: []string{"cal"},
		Short:   "Calendar operations",
	}
	cmd.AddCommand(newCalendarListCmd(app))
	cmd.AddCommand(newCalendarShowCmd(app))
	cmd.AddCommand(newCalendarCreateCmd(app))
	cmd.AddCommand(newCalendarEditCmd(app))
	cmd.AddCommand(newCalendarDeleteCmd(app))
	cmd.AddCommand(newCalendarRespondCmd(app))
	cmd.AddCommand(newCalendarFreeBusyCmd(app))
	return cmd
}

func newCalendarListCmd(app *appContext) *cobra.Command {
	var start string
	var days, limit int
	var all, today, week bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments in a window, recurring series expanded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				var appts []bridge.Appointment
				switch {
				case today:
					appts, err = b.EventsToday(cmd.Context())
				case week:
					appts, err = b.EventsThisWeek(cmd.Context())
				default:
					q := bridge.CalendarQuery{Days: days, All: all, Limit: limit}
					if from != nil {
						q.Start = *from
					}
					appts, err = b.Calendar.List(cmd.Context(), q)
				}
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), appts, func() {
					printAppointments(cmd.OutOrStdout(), appts)
				})
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Window start (date or timestamp, default now)")
	cmd.Flags().IntVar(&days, "days", 0, "Window length in days (default from defaults.calendar_days)")
	cmd.Flags().BoolVar(&all, "all", false, "List series and single appointments regardless of date")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results with --all")
	cmd.Flags().BoolVar(&today, "today", false, "Today, midnight to midnight")
	cmd.Flags().BoolVar(&week, "week", false, "The seven days from today")
	cmd.MarkFlagsMutuallyExclusive("today", "week", "all")

	return cmd
}

func newCalendarShowCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				a, err := b.Calendar.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), a, func() {
					printAppointment(cmd.OutOrStdout(), a)
				})
			})
		},
	}
}

type appointmentFlags struct {
	subject, location, body string
	start, end              string
	allDay                  bool
	required, optional      string
}

func (f *appointmentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&f.start, "start", "", "Start (RFC 3339 or 2006-01-02 15:04)")
	cmd.Flags().StringVar(&f.end, "end", "", "End")
	cmd.Flags().StringVar(&f.location, "location", "", "Location")
	cmd.Flags().StringVar(&f.body, "body", "", "Body")
	cmd.Flags().BoolVar(&f.allDay, "all-day", false, "All-day event")
	cmd.Flags().StringVar(&f.required, "required", "", "Required attendees; makes it a meeting")
	cmd.Flags().StringVar(&f.optional, "optional", "", "Optional attendees")
}

func newCalendarCreateCmd(app *appContext) *cobra.Command {
	var f appointmentFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an appointment, or a meeting when attendees are given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTimeFlag("start", f.start)
			if err != nil {
				return err
			}
			end, err := parseTimeFlag("end", f.end)
			if err != nil {
				return err
			}
			in := bridge.AppointmentInput{
				Subject:  f.subject,
				Location: f.location,
				Body:     f.body,
				AllDay:   f.allDay,
				Required: splitList(f.required),
				Optional: splitList(f.optional),
			}
			if start != nil {
				in.Start = *start
			}
			if end != nil {
				in.End = *end
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				id, err := b.Calendar.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), map[string]string{"entry_id": id}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", id)
				})
			})
		},
	}

	f.register(cmd)

	return cmd
}

func newCalendarEditCmd(app *appContext) *cobra.Command {
	var f appointmentFlags

	cmd := &cobra.Command{
		Use:   "edit <entry-id>",
		Short: "Change the given fields of an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch bridge.AppointmentPatch
			flags := cmd.Flags()
			if flags.Changed("subject") {
				patch.Subject = &f.subject
			}
			if flags.Changed("location") {
				patch.Location = &f.location
			}
			if flags.Changed("body") {
				patch.Body = &f.body
			}
			if flags.Changed("all-day") {
				patch.AllDay = &f.allDay
			}
			if flags.Changed("required") {
				patch.Required = append([]string{}, splitList(f.required)...)
			}
			if flags.Changed("optional") {
				patch.Optional = append([]string{}, splitList(f.optional)...)
			}
			var err error
			if patch.Start, err = parseTimeFlag("start", f.start); err != nil {
				return err
			}
			if patch.End, err = parseTimeFlag("end", f.end); err != nil {
				return err
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Calendar.Update(cmd.Context(), args[0], patch); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Updated.")
				return nil
			})
		},
	}

	f.register(cmd)

	return cmd
}

func newCalendarDeleteCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Calendar.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
				return nil
			})
		},
	}
}

func newCalendarRespondCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:       "respond <entry-id> <accept|decline|tentative>",
		Short:     "Respond to a meeting invitation",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"accept", "decline", "tentative"},
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, ok := bridge.ParseMeetingResponse(args[1])
			if !ok {
				return fmt.Errorf("unknown response %q (want accept, decline or tentative)", args[1])
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Calendar.Respond(cmd.Context(), args[0], resp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Responded: %s.\n", resp)
				return nil
			})
		},
	}
}

func newCalendarFreeBusyCmd(app *appContext) *cobra.Command {
	var q bridge.FreeBusyQuery
	var start, end string

	cmd := &cobra.Command{
		Use:   "freebusy [address]",
		Short: "Show availability for an address, a meeting's first attendee or yourself",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Address = args[0]
			}
			from, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			to, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}
			if from != nil {
				q.Start = *from
			}
			if to != nil {
				q.End = *to
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				fb, err := b.Calendar.FreeBusy(cmd.Context(), q)
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), fb, func() {
					printFreeBusy(cmd.OutOrStdout(), fb)
				})
			})
		},
	}

	cmd.Flags().StringVar(&q.EntryID, "meeting", "", "Use the first required attendee of this appointment")
	cmd.Flags().StringVar(&start, "start", "", "Window start (default today)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (default start plus one day)")
	cmd.Flags().IntVar(&q.IntervalMinutes, "interval", bridge.DefaultFreeBusyInterval, "Slot length in minutes")

	return cmd
}
