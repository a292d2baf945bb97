package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"legalpulse/auth"
	"legalpulse/directory"
	"legalpulse/registration"
	"legalpulse/store"
	"legalpulse/validation"
)

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) table(header string, rows func(w io.Writer)) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func (c *cli) printRecords(records []directory.Record) error {
	if c.asJSON {
		return c.printJSON(records)
	}
	return c.table("ID\tNAME\tSPECIALIZATION\tCITY\tSTATE\tRATING\tFEE\tVERIFIED", func(w io.Writer) {
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.1f\t%.0f\t%t\n",
				r.ID, r.Name, strings.Join(r.Specialization, ", "), r.Location.City, r.Location.State,
				r.Rating, r.Fees.Consultation, r.Verified)
		}
	})
}

func (c *cli) printRecord(r directory.Record) error {
	if c.asJSON {
		return c.printJSON(r)
	}
	fmt.Fprintf(c.out, "%s (#%d)\n", r.Name, r.ID)
	fmt.Fprintf(c.out, "  specialization: %s\n", strings.Join(r.Specialization, ", "))
	fmt.Fprintf(c.out, "  qualification:  %s\n", strings.Join(r.Qualification, ", "))
	fmt.Fprintf(c.out, "  experience:     %d years\n", r.Experience)
	fmt.Fprintf(c.out, "  languages:      %s\n", strings.Join(r.Languages, ", "))
	fmt.Fprintf(c.out, "  location:       %s, %s, %s\n", r.Location.Address, r.Location.City, r.Location.State)
	fmt.Fprintf(c.out, "  consultation:   %.0f\n", r.Fees.Consultation)
	if r.Fees.Hourly != nil {
		fmt.Fprintf(c.out, "  hourly:         %.0f\n", *r.Fees.Hourly)
	}
	for _, f := range r.Fees.Fixed {
		fmt.Fprintf(c.out, "  fixed:          %s %.0f\n", f.Service, f.Amount)
	}
	fmt.Fprintf(c.out, "  rating:         %.1f (%d reviews)\n", r.Rating, r.Reviews)
	fmt.Fprintf(c.out, "  contact:        %s %s\n", r.Contact.Phone, r.Contact.Email)
	fmt.Fprintf(c.out, "  verified:       %t\n", r.Verified)
	if r.About != "" {
		fmt.Fprintf(c.out, "\n%s\n", r.About)
	}
	return nil
}

func (c *cli) printRegistrations(regs []registration.Registration) error {
	if c.asJSON {
		return c.printJSON(regs)
	}
	return c.table("ID\tNAME\tEMAIL\tSPECIALIZATION\tCITY\tSTATUS\tSUBMITTED", func(w io.Writer) {
		for _, r := range regs {
			fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.FirstName, r.LastName, r.Email, r.Specialization, r.City, r.Status,
				r.CreatedAt.Local().Format(time.DateTime))
		}
	})
}

type whoami struct {
	User       *store.User                `json:"user"`
	LSPProfile *registration.Registration `json:"lspProfile"`
}

func (c *cli) printWhoami() error {
	var out whoami
	if u, ok := c.session.User(); ok {
		out.User = &u
	}
	if reg, ok := c.session.LSPProfile(); ok {
		out.LSPProfile = &reg
	}
	if c.asJSON {
		return c.printJSON(out)
	}
	if out.User == nil {
		fmt.Fprintln(c.out, "not signed in")
		return nil
	}
	fmt.Fprintf(c.out, "%s <%s> (%s)\n", out.User.Name, out.User.Email, out.User.Role)
	if out.LSPProfile != nil {
		fmt.Fprintf(c.out, "registration %s: %s\n", out.LSPProfile.ID, out.LSPProfile.Status)
	}
	return nil
}

// describe turns service errors into the message shown to the user.
func describe(err error) string {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		fields := make([]string, 0, len(verr.Fields))
		for f, msg := range verr.Fields {
			fields = append(fields, f+" "+msg)
		}
		sort.Strings(fields)
		return strings.Join(fields, "; ")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email, password or account type."
	case errors.Is(err, auth.ErrDuplicateEmail):
		return "An account with this email already exists. Please log in instead."
	case errors.Is(err, auth.ErrNotAuthenticated):
		return "Please log in first."
	case errors.Is(err, auth.ErrPermissionDenied):
		return "This command requires an administrator."
	case errors.Is(err, auth.ErrTooManyAttempts):
		return "Too many login attempts. Try again later."
	case errors.Is(err, registration.ErrAlreadyRegistered):
		return "You already have a pending or approved registration."
	case errors.Is(err, registration.ErrNotFound):
		return "Registration not found."
	case errors.Is(err, registration.ErrInvalidTransition):
		return "This registration has already been decided."
	case errors.Is(err, directory.ErrNotFound):
		return "Provider not found."
	default:
		return err.Error()
	}
}
