package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/Kodanda10/iConnect-sub000/internal/database/postgres"
	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
	"github.com/Kodanda10/iConnect-sub000/pkg/redact"
)

// SavePersonRequest creates a person or overwrites one when ID is set.
type SavePersonRequest struct {
	ID            string      `json:"id"`
	Name          string      `json:"name" binding:"required"`
	Mobile        string      `json:"mobile"`
	Dob           dates.Value `json:"dob"`
	Anniversary   dates.Value `json:"anniversary"`
	Ward          string      `json:"ward"`
	Block         string      `json:"block"`
	GramPanchayat string      `json:"gram_panchayat"`
}

type personService struct {
	personRepo repository.PersonRepository
}

func NewPersonService(personRepo repository.PersonRepository) PersonService {
	return &personService{personRepo: personRepo}
}

func (s *personService) SavePerson(ctx context.Context, req *SavePersonRequest) (*entity.Person, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	person := &entity.Person{
		ID:            id,
		Name:          req.Name,
		Mobile:        req.Mobile,
		Dob:           req.Dob,
		Anniversary:   req.Anniversary,
		Ward:          req.Ward,
		Block:         req.Block,
		GramPanchayat: req.GramPanchayat,
	}

	if err := s.personRepo.Upsert(ctx, person); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"person_id": person.ID,
		"mobile":    redact.Mobile(person.Mobile),
	}).Info("person saved")

	return person, nil
}

func (s *personService) GetPerson(ctx context.Context, id string) (*entity.Person, error) {
	return s.personRepo.GetByID(ctx, id)
}
