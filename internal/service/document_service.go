package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/repository"
	"candidash/internal/storage"
)

const (
	MaxDocumentSize   = 5 << 20
	documentMediaType = "application/pdf"
	pdfMagic          = "%PDF-"
)

// Document es un PDF recuperado del almacenamiento.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DocumentBuckets asocia cada tipo de documento con su bucket.
type DocumentBuckets struct {
	CV string
	LM string
}

// DocumentService sube y descarga el CV y la carta de motivacion de cada candidatura.
type DocumentService struct {
	logger  *zap.Logger
	tracks  *JobTrackService
	repo    repository.JobTrackRepository
	store   storage.ObjectStore
	buckets DocumentBuckets
}

func NewDocumentService(logger *zap.Logger, tracks *JobTrackService, repo repository.JobTrackRepository, store storage.ObjectStore, buckets DocumentBuckets) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		logger:  logger,
		tracks:  tracks,
		repo:    repo,
		store:   store,
		buckets: buckets,
	}
}

// Upload guarda el PDF y registra el nombre original en la candidatura.
func (s *DocumentService) Upload(ctx context.Context, jobTrackID, userID string, kind domain.DocumentKind, fileName, contentType string, data []byte) (string, error) {
	if !kind.Valid() {
		return "", ErrInvalidDocument
	}
	if _, err := s.tracks.Get(ctx, jobTrackID, userID); err != nil {
		return "", err
	}
	if err := validatePDF(contentType, data); err != nil {
		return "", err
	}

	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == "/" {
		name = string(kind) + ".pdf"
	}

	if err := s.store.Put(ctx, s.bucket(kind), documentKey(userID, jobTrackID, kind), data, documentMediaType); err != nil {
		return "", fmt.Errorf("upload %s: %w", kind, err)
	}
	if err := s.repo.SetDocument(ctx, jobTrackID, kind, name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrJobTrackNotFound
		}
		return "", fmt.Errorf("save %s file name: %w", kind, err)
	}
	s.logger.Info("document uploaded",
		zap.String("job_track_id", jobTrackID),
		zap.String("kind", string(kind)),
		zap.Int("size", len(data)),
	)
	return name, nil
}

func (s *DocumentService) Download(ctx context.Context, jobTrackID, userID string, kind domain.DocumentKind) (Document, error) {
	if !kind.Valid() {
		return Document{}, ErrInvalidDocument
	}
	track, err := s.tracks.Get(ctx, jobTrackID, userID)
	if err != nil {
		return Document{}, err
	}
	name := documentFileName(track, kind)
	if name == "" {
		return Document{}, ErrDocumentNotFound
	}

	data, err := s.store.Get(ctx, s.bucket(kind), documentKey(userID, jobTrackID, kind))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("download %s: %w", kind, err)
	}
	return Document{FileName: name, ContentType: documentMediaType, Data: data}, nil
}

func (s *DocumentService) Delete(ctx context.Context, jobTrackID, userID string, kind domain.DocumentKind) error {
	if !kind.Valid() {
		return ErrInvalidDocument
	}
	track, err := s.tracks.Get(ctx, jobTrackID, userID)
	if err != nil {
		return err
	}
	if documentFileName(track, kind) == "" {
		return ErrDocumentNotFound
	}

	if err := s.store.Delete(ctx, s.bucket(kind), documentKey(userID, jobTrackID, kind)); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if err := s.repo.SetDocument(ctx, jobTrackID, kind, ""); err != nil {
		return fmt.Errorf("clear %s file name: %w", kind, err)
	}
	return nil
}

func (s *DocumentService) bucket(kind domain.DocumentKind) string {
	if kind == domain.DocumentCV {
		return s.buckets.CV
	}
	return s.buckets.LM
}

func documentKey(userID, jobTrackID string, kind domain.DocumentKind) string {
	return userID + "/" + jobTrackID + "/" + string(kind) + ".pdf"
}

func documentFileName(track domain.JobTrack, kind domain.DocumentKind) string {
	if kind == domain.DocumentCV {
		return track.CVFileName
	}
	return track.LMFileName
}

// validatePDF acepta solo PDF de hasta 5 MiB; el content-type debe coincidir con la cabecera del archivo.
func validatePDF(contentType string, data []byte) error {
	if len(data) == 0 || len(data) > MaxDocumentSize {
		return ErrInvalidDocument
	}
	if ct := strings.TrimSpace(strings.Split(contentType, ";")[0]); ct != "" && ct != documentMediaType {
		return ErrInvalidDocument
	}
	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return ErrInvalidDocument
	}
	return nil
}
