package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"recordcore/pkg/derive"
	"recordcore/pkg/domain"
)

// CreateOwner persists a new clinic client.
func (s *Service) CreateOwner(ctx context.Context, owner domain.Owner) (domain.Owner, domain.Result, error) {
	if err := domain.Validate(owner); err != nil {
		return domain.Owner{}, domain.Result{}, err
	}
	var created domain.Owner
	res, err := s.run(ctx, opCreateOwner, func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.Owners().Insert(owner)
		return created.ID, err
	})
	return created, res, err
}

// UpdateOwner mutates an owner.
func (s *Service) UpdateOwner(ctx context.Context, id string, mutator func(*domain.Owner) error) (domain.Owner, domain.Result, error) {
	var updated domain.Owner
	res, err := s.run(ctx, opUpdateOwner, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.Owners().Update(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// DeleteOwner removes an owner. Animals keep the dangling reference and
// resolve to Unknown.
func (s *Service) DeleteOwner(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteOwner, func(tx domain.Transaction) (string, error) {
		return id, tx.Owners().Delete(id)
	})
}

// CreateAnimal persists a new patient. A non-empty OwnerID must exist.
func (s *Service) CreateAnimal(ctx context.Context, animal domain.Animal) (domain.Animal, domain.Result, error) {
	animal.History = []domain.ServiceRecord{}
	if err := domain.Validate(animal); err != nil {
		return domain.Animal{}, domain.Result{}, err
	}
	var created domain.Animal
	res, err := s.run(ctx, opCreateAnimal, func(tx domain.Transaction) (string, error) {
		if animal.OwnerID != "" {
			if _, err := tx.Owners().FindByID(animal.OwnerID); err != nil {
				return "", err
			}
		}
		var err error
		created, err = tx.Animals().Insert(animal)
		return created.ID, err
	})
	return created, res, err
}

// UpdateAnimal mutates an animal. The service history is append-only and is
// not affected by the mutator.
func (s *Service) UpdateAnimal(ctx context.Context, id string, mutator func(*domain.Animal) error) (domain.Animal, domain.Result, error) {
	var updated domain.Animal
	res, err := s.run(ctx, opUpdateAnimal, func(tx domain.Transaction) (string, error) {
		before, err := tx.Animals().FindByID(id)
		if err != nil {
			return id, err
		}
		updated, err = tx.Animals().Update(id, validated(func(a *domain.Animal) error {
			if mutator != nil {
				if err := mutator(a); err != nil {
					return err
				}
			}
			a.History = before.History
			if a.OwnerID != "" && a.OwnerID != before.OwnerID {
				if _, err := tx.Owners().FindByID(a.OwnerID); err != nil {
					return err
				}
			}
			return nil
		}))
		return id, err
	})
	return updated, res, err
}

// DeleteAnimal removes an animal together with its embedded history.
func (s *Service) DeleteAnimal(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteAnimal, func(tx domain.Transaction) (string, error) {
		return id, tx.Animals().Delete(id)
	})
}

// CreateVet persists a new professional.
func (s *Service) CreateVet(ctx context.Context, vet domain.Vet) (domain.Vet, domain.Result, error) {
	if err := domain.Validate(vet); err != nil {
		return domain.Vet{}, domain.Result{}, err
	}
	password, err := s.preparePassword(vet.Password)
	if err != nil {
		return domain.Vet{}, domain.Result{}, err
	}
	vet.Password = password
	var created domain.Vet
	res, err := s.run(ctx, opCreateVet, func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.Vets().Insert(vet)
		return created.ID, err
	})
	created.Password = ""
	return created, res, err
}

// UpdateVet mutates a vet. A changed password is hashed when hashing is on.
func (s *Service) UpdateVet(ctx context.Context, id string, mutator func(*domain.Vet) error) (domain.Vet, domain.Result, error) {
	var updated domain.Vet
	res, err := s.run(ctx, opUpdateVet, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.Vets().Update(id, validated(func(v *domain.Vet) error {
			if mutator != nil {
				if err := mutator(v); err != nil {
					return err
				}
			}
			hashed, perr := s.preparePassword(v.Password)
			v.Password = hashed
			return perr
		}))
		return id, err
	})
	updated.Password = ""
	return updated, res, err
}

// DeleteVet removes a vet. Appointments and history keep the captured name.
func (s *Service) DeleteVet(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteVet, func(tx domain.Transaction) (string, error) {
		return id, tx.Vets().Delete(id)
	})
}

// CreateProduct persists a stock item. A positive opening quantity is
// recorded as an inbound movement.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, []Advisory, error) {
	product.Name = strings.TrimSpace(product.Name)
	if err := validateProduct(product); err != nil {
		return domain.Product{}, nil, err
	}
	if product.Quantity < 0 {
		return domain.Product{}, nil, domain.InvalidInputError{Field: "quantity", Reason: "must not be negative"}
	}
	if product.EntryDate.IsZero() {
		product.EntryDate = s.now()
	}
	var created domain.Product
	res, err := s.run(ctx, opCreateProduct, func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.Products().Insert(product)
		if err != nil || created.Quantity == 0 {
			return created.ID, err
		}
		_, err = tx.StockTransactions().Insert(domain.StockTransaction{
			ProductID:      created.ID,
			ProductName:    created.Name,
			Date:           s.now(),
			Kind:           domain.StockIn,
			Quantity:       created.Quantity,
			QuantityBefore: 0,
			QuantityAfter:  created.Quantity,
			Notes:          "opening stock",
		})
		return created.ID, err
	})
	return created, advisoriesFrom(res), err
}

// UpdateProduct mutates product metadata. Quantity changes go through
// ReceiveStock or AdjustStock so that they leave a movement behind.
func (s *Service) UpdateProduct(ctx context.Context, id string, mutator func(*domain.Product) error) (domain.Product, domain.Result, error) {
	var updated domain.Product
	res, err := s.run(ctx, opUpdateProduct, func(tx domain.Transaction) (string, error) {
		before, err := tx.Products().FindByID(id)
		if err != nil {
			return id, err
		}
		updated, err = tx.Products().Update(id, func(p *domain.Product) error {
			if mutator != nil {
				if err := mutator(p); err != nil {
					return err
				}
			}
			if p.Quantity != before.Quantity {
				return domain.InvalidInputError{Field: "quantity", Reason: "use stock entry or adjustment to change quantity"}
			}
			p.Name = strings.TrimSpace(p.Name)
			return validateProduct(*p)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteProduct removes a product. Its stock transactions are kept.
func (s *Service) DeleteProduct(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteProduct, func(tx domain.Transaction) (string, error) {
		return id, tx.Products().Delete(id)
	})
}

func validateProduct(p domain.Product) error {
	if err := domain.Validate(p); err != nil {
		return err
	}
	if p.UnitPrice.IsNegative() {
		return domain.InvalidInputError{Field: "unit_price", Reason: "must not be negative"}
	}
	return nil
}

// ReceiveStock adds quantity to a product and records an inbound movement.
func (s *Service) ReceiveStock(ctx context.Context, productID string, quantity int, notes string) (domain.StockTransaction, []Advisory, error) {
	if quantity <= 0 {
		return domain.StockTransaction{}, nil, domain.InvalidInputError{Field: "quantity", Reason: "must be positive"}
	}
	var movement domain.StockTransaction
	res, err := s.run(ctx, opReceiveStock, func(tx domain.Transaction) (string, error) {
		var err error
		movement, err = s.moveStock(tx, productID, quantity, notes)
		return productID, err
	})
	return movement, advisoriesFrom(res), err
}

// AdjustStock sets a product to a counted quantity and records the difference
// as a movement. An unchanged quantity writes nothing.
func (s *Service) AdjustStock(ctx context.Context, productID string, counted int, notes string) (domain.StockTransaction, []Advisory, error) {
	if counted < 0 {
		return domain.StockTransaction{}, nil, domain.InvalidInputError{Field: "quantity", Reason: "must not be negative"}
	}
	if strings.TrimSpace(notes) == "" {
		notes = "manual adjustment"
	}
	var movement domain.StockTransaction
	res, err := s.run(ctx, opAdjustStock, func(tx domain.Transaction) (string, error) {
		product, err := tx.Products().FindByID(productID)
		if err != nil {
			return productID, err
		}
		if counted == product.Quantity {
			return productID, nil
		}
		movement, err = s.moveStock(tx, productID, counted-product.Quantity, notes)
		return productID, err
	})
	return movement, advisoriesFrom(res), err
}

// moveStock applies a signed quantity delta and appends the movement.
func (s *Service) moveStock(tx domain.Transaction, productID string, delta int, notes string) (domain.StockTransaction, error) {
	var before int
	product, err := tx.Products().Update(productID, func(p *domain.Product) error {
		before = p.Quantity
		p.Quantity += delta
		return nil
	})
	if err != nil {
		return domain.StockTransaction{}, err
	}
	kind, qty := domain.StockIn, delta
	if delta < 0 {
		kind, qty = domain.StockOut, -delta
	}
	return tx.StockTransactions().Insert(domain.StockTransaction{
		ProductID:      product.ID,
		ProductName:    product.Name,
		Date:           s.now(),
		Kind:           kind,
		Quantity:       qty,
		QuantityBefore: before,
		QuantityAfter:  product.Quantity,
		Notes:          notes,
	})
}

// ScheduleAppointment books a pending visit. The animal and, when given, the
// vet must exist.
func (s *Service) ScheduleAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, domain.Result, error) {
	appt.Status = domain.AppointmentPending
	appt.ProductsUsed = []domain.LineItem{}
	if appt.VetID != nil && strings.TrimSpace(*appt.VetID) == "" {
		appt.VetID = nil
	}
	if err := domain.Validate(appt); err != nil {
		return domain.Appointment{}, domain.Result{}, err
	}
	if appt.ScheduledAt.IsZero() {
		return domain.Appointment{}, domain.Result{}, domain.InvalidInputError{Field: "scheduled_at", Reason: "is required"}
	}
	var created domain.Appointment
	res, err := s.run(ctx, opSchedule, func(tx domain.Transaction) (string, error) {
		if _, err := tx.Animals().FindByID(appt.AnimalID); err != nil {
			return "", err
		}
		if appt.VetID != nil {
			if _, err := tx.Vets().FindByID(*appt.VetID); err != nil {
				return "", err
			}
		}
		var err error
		created, err = tx.Appointments().Insert(appt)
		return created.ID, err
	})
	return created, res, err
}

// UpdateAppointment reschedules or reassigns an open appointment. Status and
// consumed products are managed by the workflow operations.
func (s *Service) UpdateAppointment(ctx context.Context, id string, mutator func(*domain.Appointment) error) (domain.Appointment, domain.Result, error) {
	var updated domain.Appointment
	res, err := s.run(ctx, opUpdateAppointment, func(tx domain.Transaction) (string, error) {
		before, err := tx.Appointments().FindByID(id)
		if err != nil {
			return id, err
		}
		if !before.Status.Closable() {
			return id, domain.IllegalStateError{Entity: domain.EntityAppointment, ID: id, State: string(before.Status), Reason: "only open appointments can be edited"}
		}
		updated, err = tx.Appointments().Update(id, validated(func(a *domain.Appointment) error {
			if mutator != nil {
				if err := mutator(a); err != nil {
					return err
				}
			}
			a.Status, a.ProductsUsed = before.Status, before.ProductsUsed
			if a.AnimalID != before.AnimalID {
				if _, err := tx.Animals().FindByID(a.AnimalID); err != nil {
					return err
				}
			}
			if a.VetID != nil && (before.VetID == nil || *a.VetID != *before.VetID) {
				if _, err := tx.Vets().FindByID(*a.VetID); err != nil {
					return err
				}
			}
			return nil
		}))
		return id, err
	})
	return updated, res, err
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return s.transitionAppointment(ctx, opConfirm, id, domain.AppointmentConfirmed, func(st domain.AppointmentStatus) bool {
		return st == domain.AppointmentPending
	})
}

// CancelAppointment cancels a pending or confirmed appointment.
func (s *Service) CancelAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return s.transitionAppointment(ctx, opCancel, id, domain.AppointmentCancelled, domain.AppointmentStatus.Closable)
}

func (s *Service) transitionAppointment(ctx context.Context, op, id string, next domain.AppointmentStatus, allowed func(domain.AppointmentStatus) bool) (domain.Appointment, error) {
	var updated domain.Appointment
	_, err := s.run(ctx, op, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.Appointments().Update(id, func(a *domain.Appointment) error {
			if !allowed(a.Status) {
				return domain.IllegalStateError{Entity: domain.EntityAppointment, ID: id, State: string(a.Status), Reason: "cannot move to " + string(next)}
			}
			a.Status = next
			return nil
		})
		return id, err
	})
	return updated, err
}

// DeleteAppointment removes an appointment that has not been performed.
func (s *Service) DeleteAppointment(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteAppointment, func(tx domain.Transaction) (string, error) {
		appt, err := tx.Appointments().FindByID(id)
		if err != nil {
			return id, err
		}
		if appt.Status == domain.AppointmentPerformed {
			return id, domain.IllegalStateError{Entity: domain.EntityAppointment, ID: id, State: string(appt.Status), Reason: "performed appointments are part of the service history"}
		}
		return id, tx.Appointments().Delete(id)
	})
}

// ServiceVisit is the input of CloseServiceVisit. PerformerID defaults to the
// appointment's vet.
type ServiceVisit struct {
	AppointmentID   string
	ConsultationFee decimal.Decimal
	Items           []derive.LineInput
	Notes           string
	PerformerID     string
}

// ServiceOutcome is the result of closing a visit.
type ServiceOutcome struct {
	Record       domain.ServiceRecord
	AnimalID     string
	Transactions []domain.StockTransaction
	Advisories   []Advisory
}

// CloseServiceVisit prices a visit, appends it to the animal's history, marks
// the appointment performed and draws the consumed products down from stock,
// all in one transaction. Missing products and stock below the warning
// threshold are reported as advisories.
func (s *Service) CloseServiceVisit(ctx context.Context, visit ServiceVisit) (ServiceOutcome, error) {
	totals, err := derive.ServiceTotals(visit.ConsultationFee, visit.Items)
	if err != nil {
		return ServiceOutcome{}, err
	}
	var out ServiceOutcome
	res, err := s.run(ctx, opCloseVisit, func(tx domain.Transaction) (string, error) {
		out = ServiceOutcome{}
		appt, err := tx.Appointments().FindByID(visit.AppointmentID)
		if err != nil {
			return visit.AppointmentID, err
		}
		if !appt.Status.Closable() {
			return appt.ID, domain.IllegalStateError{Entity: domain.EntityAppointment, ID: appt.ID, State: string(appt.Status), Reason: "only pending or confirmed appointments can be closed"}
		}
		animal, err := tx.Animals().FindByID(appt.AnimalID)
		if err != nil {
			return appt.ID, err
		}
		performer, err := resolvePerformer(tx.Snapshot(), visit.PerformerID, appt.VetID)
		if err != nil {
			return appt.ID, err
		}

		now := s.now()
		record := domain.ServiceRecord{
			Date:            now,
			Kind:            domain.ServiceKind,
			AppointmentID:   appt.ID,
			ConsultationFee: visit.ConsultationFee,
			LineItems:       totals.Items,
			TotalProducts:   totals.TotalProducts,
			GrandTotal:      totals.GrandTotal,
			Notes:           visit.Notes,
			PerformedByID:   performer.ID,
			PerformedByName: performer.Name,
		}
		if _, err := tx.Animals().Update(animal.ID, func(a *domain.Animal) error {
			a.History = append(a.History, record)
			return nil
		}); err != nil {
			return appt.ID, err
		}
		if _, err := tx.Appointments().Update(appt.ID, func(a *domain.Appointment) error {
			a.Status = domain.AppointmentPerformed
			a.ProductsUsed = append([]domain.LineItem{}, totals.Items...)
			return nil
		}); err != nil {
			return appt.ID, err
		}

		levels, err := stockLevels(tx.Snapshot())
		if err != nil {
			return appt.ID, err
		}
		drawn := derive.DrawDown(levels, visit.Items)
		note := fmt.Sprintf("service visit for animal %s (%s)", animal.Name, animal.ID)
		for _, m := range drawn.Movements {
			if _, err := tx.Products().Update(m.Product.ProductID, func(p *domain.Product) error {
				p.Quantity = m.After
				return nil
			}); err != nil {
				return appt.ID, err
			}
			movement, err := tx.StockTransactions().Insert(domain.StockTransaction{
				ProductID:      m.Product.ProductID,
				ProductName:    m.Product.Name,
				Date:           now,
				Kind:           domain.StockOut,
				Quantity:       m.Used,
				QuantityBefore: m.Before,
				QuantityAfter:  m.After,
				Notes:          note,
			})
			if err != nil {
				return appt.ID, err
			}
			out.Transactions = append(out.Transactions, movement)
		}
		for _, name := range drawn.Missing {
			out.Advisories = append(out.Advisories, missingProductAdvisory(name))
		}
		out.Record = record
		out.AnimalID = animal.ID
		return appt.ID, nil
	})
	if err != nil {
		return ServiceOutcome{}, err
	}
	out.Advisories = append(advisoriesFrom(res), out.Advisories...)
	for _, a := range out.Advisories {
		if a.Code == AdvisoryMissingProduct {
			s.logger.Warn("advisory", "operation", opCloseVisit, "code", string(a.Code), "message", a.Message)
		}
	}
	return out, nil
}

func resolvePerformer(v domain.TransactionView, performerID string, apptVet *string) (Ref, error) {
	id := strings.TrimSpace(performerID)
	if id == "" && apptVet != nil {
		id = *apptVet
	}
	if id == "" {
		return Ref{}, domain.InvalidInputError{Field: "performer", Reason: "is required when the appointment has no vet"}
	}
	vet, err := v.Vets().FindByID(id)
	if err != nil {
		return Ref{}, err
	}
	return Ref{ID: vet.ID, Name: vet.Name}, nil
}

func stockLevels(v domain.TransactionView) ([]derive.StockLevel, error) {
	products, err := v.Products().Find(domain.Selector{}, domain.Sort{Field: "created_at"})
	if err != nil {
		return nil, err
	}
	levels := make([]derive.StockLevel, 0, len(products))
	for _, p := range products {
		levels = append(levels, derive.StockLevel{ProductID: p.ID, Name: p.Name, Quantity: p.Quantity})
	}
	return levels, nil
}
