package core

import (
	"context"
	"errors"
	"strings"

	"recordcore/pkg/domain"
)

// UnknownName is displayed for unresolved soft references.
const UnknownName = "Unknown"

// Ref is the display tuple of a related entity. An unresolved reference has an
// empty ID and the name Unknown.
type Ref struct {
	ID   string
	Name string
}

func unknownRef() Ref { return Ref{Name: UnknownName} }

// AppointmentParties resolves the display tuples around an appointment.
type AppointmentParties struct {
	Appointment domain.Appointment
	Animal      Ref
	Owner       Ref
	Vet         Ref
}

// ResolveClassByName returns the class with the given name or NotFound.
func (s *Service) ResolveClassByName(ctx context.Context, name string) (domain.Class, error) {
	var class domain.Class
	err := s.view(ctx, "resolve_class", func(v domain.TransactionView) error {
		var err error
		class, err = classByName(v, name)
		return err
	})
	return class, err
}

// ResolveStudentClass returns the class a student is enrolled in.
func (s *Service) ResolveStudentClass(ctx context.Context, studentID string) (domain.Class, error) {
	var class domain.Class
	err := s.view(ctx, "resolve_student_class", func(v domain.TransactionView) error {
		student, err := v.Students().FindByID(studentID)
		if err != nil {
			return err
		}
		class, err = classByName(v, student.ClassName)
		return err
	})
	return class, err
}

// ResolveOwnerOf returns the owner of an animal, or Unknown when the animal
// has no owner or the owner was removed.
func (s *Service) ResolveOwnerOf(ctx context.Context, animalID string) (Ref, error) {
	var ref Ref
	err := s.view(ctx, "resolve_owner", func(v domain.TransactionView) error {
		animal, err := v.Animals().FindByID(animalID)
		if err != nil {
			return err
		}
		ref, err = ownerRef(v, animal.OwnerID)
		return err
	})
	return ref, err
}

// ResolveTeacherForSubject returns the first teacher of subject by name, or
// Unknown.
func (s *Service) ResolveTeacherForSubject(ctx context.Context, subject string) (Ref, error) {
	var ref Ref
	err := s.view(ctx, "resolve_teacher", func(v domain.TransactionView) error {
		var err error
		ref, err = teacherForSubject(v, subject)
		return err
	})
	return ref, err
}

// ResolveAppointmentParties returns the animal, owner and vet of an appointment.
func (s *Service) ResolveAppointmentParties(ctx context.Context, appointmentID string) (AppointmentParties, error) {
	var out AppointmentParties
	err := s.view(ctx, "resolve_appointment", func(v domain.TransactionView) error {
		appt, err := v.Appointments().FindByID(appointmentID)
		if err != nil {
			return err
		}
		out.Appointment = appt
		out.Animal, out.Owner = unknownRef(), unknownRef()
		animal, err := v.Animals().FindByID(appt.AnimalID)
		switch {
		case err == nil:
			out.Animal = Ref{ID: animal.ID, Name: animal.Name}
			if out.Owner, err = ownerRef(v, animal.OwnerID); err != nil {
				return err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		out.Vet, err = vetRef(v, appt.VetID)
		return err
	})
	return out, err
}

// ResolveVetByCredentials returns the vet whose name and password match, or
// AuthFailed. Names compare case-insensitively.
func (s *Service) ResolveVetByCredentials(ctx context.Context, name, password string) (domain.Vet, error) {
	var vet domain.Vet
	err := s.view(ctx, "resolve_vet_credentials", func(v domain.TransactionView) error {
		var err error
		vet, err = vetByCredentials(v, name, password)
		return err
	})
	return vet, err
}

func classByName(v domain.TransactionView, name string) (domain.Class, error) {
	name = strings.TrimSpace(name)
	class, err := v.Classes().FindOne(domain.Where(domain.Eq("name", name)))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Class{}, domain.NotFoundError{Entity: domain.EntityClass, ID: name}
	}
	return class, err
}

func ownerRef(v domain.TransactionView, ownerID string) (Ref, error) {
	if ownerID == "" {
		return unknownRef(), nil
	}
	owner, err := v.Owners().FindByID(ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return unknownRef(), nil
	}
	if err != nil {
		return Ref{}, err
	}
	return Ref{ID: owner.ID, Name: owner.Name}, nil
}

func vetRef(v domain.TransactionView, vetID *string) (Ref, error) {
	if vetID == nil || *vetID == "" {
		return unknownRef(), nil
	}
	vet, err := v.Vets().FindByID(*vetID)
	if errors.Is(err, domain.ErrNotFound) {
		return unknownRef(), nil
	}
	if err != nil {
		return Ref{}, err
	}
	return Ref{ID: vet.ID, Name: vet.Name}, nil
}

func teacherForSubject(v domain.TransactionView, subject string) (Ref, error) {
	teachers, err := v.Teachers().Find(domain.Where(domain.Eq("subject", subject)), domain.Sort{Field: "name"})
	if err != nil {
		return Ref{}, err
	}
	if len(teachers) == 0 {
		return unknownRef(), nil
	}
	return Ref{ID: teachers[0].ID, Name: teachers[0].Name}, nil
}
