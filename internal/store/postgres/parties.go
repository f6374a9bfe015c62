package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicware/vet-reminders/internal/party"
)

// Patient returns the patient with the given ID, or nil if none exists.
func (s *Store) Patient(ctx context.Context, id uuid.UUID) (*party.Patient, error) {
	var p party.Patient
	err := s.db.QueryRow(ctx, `
		SELECT id, customer_id, name, species, active, deceased, deceased_at
		FROM patients
		WHERE id = $1`, id).Scan(
		&p.ID, &p.CustomerID, &p.Name, &p.Species, &p.Active, &p.Deceased, &p.DeceasedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load patient: %w", err)
	}
	return &p, nil
}

// Owner returns the customer owning a patient, with contacts loaded, or nil
// if the patient has no owner.
func (s *Store) Owner(ctx context.Context, patientID uuid.UUID) (*party.Customer, error) {
	var c party.Customer
	err := s.db.QueryRow(ctx, `
		SELECT c.id, c.name, c.active
		FROM customers c
		JOIN patients p ON p.customer_id = c.id
		WHERE p.id = $1`, patientID).Scan(&c.ID, &c.Name, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load owner: %w", err)
	}
	contacts, err := s.contacts(ctx, []uuid.UUID{c.ID})
	if err != nil {
		return nil, err
	}
	c.Contacts = contacts[c.ID]
	return &c, nil
}

// contacts batch-loads contacts for a set of customers, keyed by customer ID.
func (s *Store) contacts(ctx context.Context, customerIDs []uuid.UUID) (map[uuid.UUID][]party.Contact, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, customer_id, kind, value, purposes, preferred, sms
		FROM contacts
		WHERE customer_id = ANY($1)
		ORDER BY customer_id, id`, customerIDs)
	if err != nil {
		return nil, fmt.Errorf("store: load contacts: %w", err)
	}
	defer rows.Close()

	byCustomer := make(map[uuid.UUID][]party.Contact)
	for rows.Next() {
		var (
			c    party.Contact
			kind string
		)
		if err := rows.Scan(&c.ID, &c.CustomerID, &kind, &c.Value, &c.Purposes, &c.Preferred, &c.SMS); err != nil {
			return nil, fmt.Errorf("store: scan contact: %w", err)
		}
		c.Kind = party.ContactKind(kind)
		byCustomer[c.CustomerID] = append(byCustomer[c.CustomerID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load contacts: %w", err)
	}
	return byCustomer, nil
}
