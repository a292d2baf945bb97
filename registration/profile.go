package registration

import (
	"context"
	"strings"

	"legalpulse/store"
	"legalpulse/validation"
)

// SelectProfile picks the submission that represents an LSP: the approved one,
// else the most recent pending one. Rejected submissions never represent the
// user. Later entries win ties on CreatedAt.
func SelectProfile(regs []Registration) (Registration, bool) {
	var best *Registration
	for i := range regs {
		reg := &regs[i]
		if rank(reg.Status) == 0 {
			continue
		}
		if best == nil || rank(reg.Status) > rank(best.Status) ||
			(rank(reg.Status) == rank(best.Status) && !reg.CreatedAt.Before(best.CreatedAt)) {
			best = reg
		}
	}
	if best == nil {
		return Registration{}, false
	}
	return best.Clone(), true
}

func rank(s Status) int {
	switch s {
	case StatusApproved:
		return 2
	case StatusPending:
		return 1
	default:
		return 0
	}
}

// ProfileFor returns the representative submission for a user.
func (s *Service) ProfileFor(ctx context.Context, userID string) (Registration, bool, error) {
	regs, err := s.ListForUser(ctx, userID)
	if err != nil {
		return Registration{}, false, err
	}
	reg, ok := SelectProfile(regs)
	return reg, ok, nil
}

// ApplyPatch merges patch into reg and re-validates the result. Identity,
// email, status and timestamps are never touched.
func ApplyPatch(reg Registration, patch ProfilePatch) (Registration, error) {
	out := reg.Clone()
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&out.FirstName, patch.FirstName)
	set(&out.LastName, patch.LastName)
	set(&out.Phone, patch.Phone)
	set(&out.Designation, patch.Designation)
	set(&out.Experience, patch.Experience)
	set(&out.Specialization, patch.Specialization)
	set(&out.About, patch.About)
	set(&out.City, patch.City)
	set(&out.State, patch.State)
	set(&out.ConsultationFee, patch.ConsultationFee)
	if patch.Languages != nil {
		out.Languages = cleanLanguages(patch.Languages)
	}

	if err := validation.Struct(formOf(out)); err != nil {
		return Registration{}, err
	}
	return out, nil
}

func formOf(reg Registration) Form {
	return Form{
		FirstName:       reg.FirstName,
		LastName:        reg.LastName,
		Email:           reg.Email,
		Phone:           reg.Phone,
		Designation:     reg.Designation,
		Experience:      reg.Experience,
		Specialization:  reg.Specialization,
		Languages:       reg.Languages,
		About:           reg.About,
		City:            reg.City,
		State:           reg.State,
		ConsultationFee: reg.ConsultationFee,
		TermsAccepted:   true,
	}
}

// UpdateProfile patches the user's own active submission with the given id. It
// never creates a submission; a rejected one is reported as ErrNotFound.
func (s *Service) UpdateProfile(ctx context.Context, userID, registrationID string, patch ProfilePatch) (Registration, error) {
	var updated Registration
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		reg, ok := tx.RegistrationByID(registrationID)
		if !ok || reg.UserID != userID || !reg.Status.Active() {
			return ErrNotFound
		}
		merged, err := ApplyPatch(reg, patch)
		if err != nil {
			return err
		}
		updated = merged
		return tx.ReplaceRegistration(merged)
	})
	if err != nil {
		return Registration{}, err
	}
	return updated, nil
}
