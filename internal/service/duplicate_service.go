package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/repository"
)

// DuplicateThreshold is the minimum score recorded as a duplicate candidate.
const DuplicateThreshold = 70

// DuplicateScore is the similarity of two contacts. Overlapping rules may
// push Score above 100.
type DuplicateScore struct {
	Score         int      `json:"score"`
	MatchedFields []string `json:"matched_fields"`
}

// ScoreDuplicate compares two contacts field by field.
func ScoreDuplicate(a, b model.Contact) DuplicateScore {
	var s DuplicateScore
	add := func(points int, field string) {
		s.Score += points
		s.MatchedFields = append(s.MatchedFields, field)
	}

	if ea, eb := strings.TrimSpace(a.Email), strings.TrimSpace(b.Email); ea != "" && strings.EqualFold(ea, eb) {
		add(40, "email")
	}

	if pa, pb := digitsOnly(a.Phone), digitsOnly(b.Phone); pa != "" && pa == pb {
		add(30, "phone")
	}

	na, nb := strings.ToLower(a.FullName()), strings.ToLower(b.FullName())
	switch {
	case na == "" || nb == "":
	case na == nb:
		add(20, "name")
	case strings.Contains(na, nb) || strings.Contains(nb, na):
		add(10, "name")
	}

	if a.FirstName != "" && a.LastName != "" && b.FirstName != "" && b.LastName != "" &&
		strings.EqualFold(a.FirstName, b.FirstName) && strings.EqualFold(a.LastName, b.LastName) {
		add(15, "firstName_lastName")
	}

	if ca, cb := strings.TrimSpace(a.Company), strings.TrimSpace(b.Company); ca != "" && strings.EqualFold(ca, cb) {
		add(10, "company")
	}

	return s
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// DuplicateService finds and resolves duplicate contacts.
type DuplicateService struct {
	ContactRepo   repository.ContactRepositoryInterface
	DuplicateRepo repository.DuplicateRepositoryInterface
	Log           *zap.SugaredLogger
}

// Scan compares every pair of the user's contacts and records the pairs that
// reach DuplicateThreshold and were not recorded before. It returns how many
// new pairs were stored.
func (s *DuplicateService) Scan(ctx context.Context, userID string) (int, error) {
	contacts, err := s.ContactRepo.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := 0; i < len(contacts); i++ {
		for j := i + 1; j < len(contacts); j++ {
			score := ScoreDuplicate(contacts[i], contacts[j])
			if score.Score < DuplicateThreshold {
				continue
			}

			exists, err := s.DuplicateRepo.Exists(ctx, contacts[i].ID, contacts[j].ID)
			if err != nil {
				return created, err
			}
			if exists {
				continue
			}

			d := &model.ContactDuplicate{
				UserID:        userID,
				ContactID1:    contacts[i].ID,
				ContactID2:    contacts[j].ID,
				Score:         score.Score,
				MatchedFields: score.MatchedFields,
			}
			if err := s.DuplicateRepo.Create(ctx, d); err != nil {
				return created, err
			}
			created++
		}
	}

	s.Log.Infow("duplicate scan finished", "user_id", userID, "contacts", len(contacts), "created", created)
	return created, nil
}

func (s *DuplicateService) List(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.ContactDuplicate, error) {
	return s.DuplicateRepo.List(ctx, userID, status)
}

func (s *DuplicateService) Ignore(ctx context.Context, userID, id string) error {
	if _, err := s.pending(ctx, userID, id); err != nil {
		return err
	}
	return s.DuplicateRepo.UpdateStatus(ctx, id, model.DuplicateIgnored)
}

// Merge folds the second contact of a pair into the first: blank fields of the
// first are filled from the second, tags are united, and the second contact
// is deleted.
func (s *DuplicateService) Merge(ctx context.Context, userID, id string) (*model.Contact, error) {
	d, err := s.pending(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	keep, err := s.ContactRepo.GetByID(ctx, d.ContactID1)
	if err != nil {
		return nil, err
	}
	drop, err := s.ContactRepo.GetByID(ctx, d.ContactID2)
	if err != nil {
		return nil, err
	}

	mergeContact(keep, drop)
	if err := s.ContactRepo.Update(ctx, keep); err != nil {
		return nil, err
	}
	if err := s.ContactRepo.Delete(ctx, drop.ID); err != nil {
		return nil, err
	}
	if err := s.DuplicateRepo.UpdateStatus(ctx, id, model.DuplicateMerged); err != nil {
		return nil, err
	}

	s.Log.Infow("contacts merged", "kept", keep.ID, "removed", drop.ID)
	return keep, nil
}

// pending loads a pair owned by userID. Pairs of other users look missing.
func (s *DuplicateService) pending(ctx context.Context, userID, id string) (*model.ContactDuplicate, error) {
	d, err := s.DuplicateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, appErrors.ErrDuplicateNotFound
	}
	if d.Status != model.DuplicatePending {
		return nil, fmt.Errorf("duplicate %s is already %s: %w", id, d.Status, appErrors.ErrValidation)
	}
	return d, nil
}

func mergeContact(dst, src *model.Contact) {
	fill := func(d *string, s string) {
		if strings.TrimSpace(*d) == "" {
			*d = s
		}
	}
	fill(&dst.Name, src.Name)
	fill(&dst.FirstName, src.FirstName)
	fill(&dst.LastName, src.LastName)
	fill(&dst.Company, src.Company)
	fill(&dst.JobTitle, src.JobTitle)
	fill(&dst.Phone, src.Phone)
	fill(&dst.Website, src.Website)
	fill(&dst.Address, src.Address)
	fill(&dst.City, src.City)
	fill(&dst.State, src.State)
	fill(&dst.Country, src.Country)
	fill(&dst.PostalCode, src.PostalCode)

	for _, t := range src.Tags {
		if !dst.HasAnyTag([]string{t}) {
			dst.Tags = append(dst.Tags, t)
		}
	}
}
