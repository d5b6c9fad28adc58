package repo

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"productreel/internal/domain"
)

func scanDomain(row pgx.Row) (*domain.Domain, error) {
	var (
		d      domain.Domain
		status string
	)
	if err := row.Scan(&d.ID, &d.URL, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	st, err := domain.ParseDomainStatus(status)
	if err != nil {
		return nil, fmt.Errorf("domain %d: %w", d.ID, err)
	}
	d.Status = st
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p             domain.Product
		images        []byte
		videoStatus   string
		publishStatus string
	)
	if err := row.Scan(
		&p.ID,
		&p.DomainID,
		&p.Title,
		&p.Description,
		&p.URL,
		&images,
		&videoStatus,
		&p.VideoURL,
		&p.VideoTaskID,
		&publishStatus,
		&p.PublishID,
		&p.PublishURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.VideoStatus, err = domain.ParseVideoStatus(videoStatus); err != nil {
		return nil, fmt.Errorf("product %d: %w", p.ID, err)
	}
	if p.PublishStatus, err = domain.ParsePublishStatus(publishStatus); err != nil {
		return nil, fmt.Errorf("product %d: %w", p.ID, err)
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("product %d images: %w", p.ID, err)
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullable[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
