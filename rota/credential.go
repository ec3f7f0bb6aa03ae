package rota

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/warp/rota-engine/generic"
	"go.uber.org/zap"
)

// ExpiringSoonWindow is how far ahead of its expiry a credential is flagged.
const ExpiringSoonWindow = 60

const DefaultCredentialProvider = "Uploaded Document"

type CredentialStatus string

const (
	CredentialValid        CredentialStatus = "Valid"
	CredentialExpiringSoon CredentialStatus = "Expiring Soon"
	CredentialExpired      CredentialStatus = "Expired"
)

// Credential is one entry of a doctor's professional passport (license,
// certification, insurance). Status is derived from ExpiryDate on read.
type Credential struct {
	ID         string           `json:"id"`
	DoctorID   string           `json:"doctorId"`
	Name       string           `json:"name"`
	Provider   string           `json:"provider"`
	ExpiryDate generic.Date     `json:"expiryDate"`
	Status     CredentialStatus `json:"status"`
	FileURL    string           `json:"fileUrl,omitempty"`
	UploadedAt time.Time        `json:"uploadedAt"`
}

// StatusOn classifies the credential as of today. The expiry day itself
// still counts as valid.
func (c Credential) StatusOn(today generic.Date) CredentialStatus {
	switch {
	case c.ExpiryDate.Before(today):
		return CredentialExpired
	case c.ExpiryDate.BeforeOrEqual(today.AddDays(ExpiringSoonWindow)):
		return CredentialExpiringSoon
	default:
		return CredentialValid
	}
}

// AddCredential records a credential for doctorID. Doctors upload their
// own; managers may upload for anyone.
func (s *Service) AddCredential(ctx context.Context, actor Actor, doctorID string, c Credential) (Credential, error) {
	if doctorID == "" {
		doctorID = actor.ID
	}
	if err := canSeeCredentials(actor, doctorID); err != nil {
		return Credential{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Credential{}, &ValidationError{Kind: ErrInvalidCredential, Reason: "name is required"}
	}
	if c.ExpiryDate.IsZero() {
		return Credential{}, &ValidationError{Kind: ErrInvalidCredential, Reason: "expiryDate is required"}
	}
	if strings.TrimSpace(c.Provider) == "" {
		c.Provider = DefaultCredentialProvider
	}
	c.ID = "c-" + s.newID()
	c.DoctorID = doctorID
	c.UploadedAt = s.now().UTC()
	c.Status = c.StatusOn(generic.DateOf(s.now()))

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.SaveCredential(ctx, c); err != nil {
			return err
		}
		return s.notify(ctx, st, doctorID, "Credential Uploaded", c.Name+" added to your passport.", NotifySuccess, "/profile")
	})
	if err != nil {
		return Credential{}, err
	}
	s.log.Info("credential added", zap.String("credential_id", c.ID), zap.String("doctor_id", doctorID))
	return c, nil
}

// Credentials lists doctorID's passport, earliest expiry first, with the
// status derived as of now.
func (s *Service) Credentials(ctx context.Context, actor Actor, doctorID string) ([]Credential, error) {
	if err := canSeeCredentials(actor, doctorID); err != nil {
		return nil, err
	}
	creds, err := s.store.ListCredentials(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	today := generic.DateOf(s.now())
	out := lo.Map(creds, func(c Credential, _ int) Credential {
		c.Status = c.StatusOn(today)
		return c
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func canSeeCredentials(actor Actor, doctorID string) error {
	if actor.ID == "" {
		return forbidden("actor is required")
	}
	if actor.ID != doctorID && !actor.IsManager() {
		return forbidden("another doctor's credentials")
	}
	return nil
}
