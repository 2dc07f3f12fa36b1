package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/campusdesk/report-portal-api/internal/dto"
	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/internal/registry"
	appErrors "github.com/campusdesk/report-portal-api/pkg/errors"
)

type importStore interface {
	InsertBatch(ctx context.Context, ident string, records []models.DynamicRecord) (int, error)
	ExistsFieldValue(ctx context.Context, ident, field, value string) (bool, error)
}

type stagedFiles interface {
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// ImportService turns an uploaded sheet into records. Every row is
// validated before any row is inserted: a single bad row rejects the
// whole file.
type ImportService struct {
	records  importStore
	registry *registry.Registry
	files    stagedFiles
	audit    auditLogger
	logger   *zap.Logger
}

// NewImportService constructs the service.
func NewImportService(records importStore, reg *registry.Registry, files stagedFiles, audit auditLogger, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{records: records, registry: reg, files: files, audit: audit, logger: logger}
}

// Import parses the staged file and inserts its rows on behalf of the
// submitter. The staged file is removed whether the import succeeds or
// not.
func (s *ImportService) Import(ctx context.Context, tableName, stagedName string, actor *models.JWTClaims) (*dto.BulkUploadResult, error) {
	defer func() {
		if err := s.files.Delete(stagedName); err != nil {
			s.logger.Warn("failed to remove staged upload", zap.String("file", stagedName), zap.Error(err))
		}
	}()

	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	name := models.NormalizeName(tableName)
	col, ok := s.registry.Resolve(name)
	if !ok {
		return nil, appErrors.ErrModelNotFound
	}

	rows, err := s.readRows(stagedName)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file has no data rows")
	}

	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = models.NormalizeName(cell)
	}

	records, err := s.buildRecords(ctx, col, header, rows[1:], actor)
	if err != nil {
		return nil, err
	}

	inserted, err := s.records.InsertBatch(ctx, col.Ident(), records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
			fmt.Sprintf("import failed after %d rows", inserted))
	}

	s.emitAudit(ctx, actor, col.Name, inserted)
	return &dto.BulkUploadResult{TableName: col.Name, Inserted: inserted}, nil
}

// buildRecords validates every row against the descriptor before any
// insert happens, so a partial file never produces partial data. Every
// declared field without a default must appear in every row.
func (s *ImportService) buildRecords(ctx context.Context, col *registry.Collection, header []string, rows [][]string, actor *models.JWTClaims) ([]models.DynamicRecord, error) {
	sctx := actor.SubmitterContextOf()
	seen := map[string]map[string]struct{}{}

	records := make([]models.DynamicRecord, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		data := models.RecordData{}
		for j, cell := range row {
			if j >= len(header) || header[j] == "" {
				continue
			}
			value := strings.TrimSpace(cell)
			if value != "" {
				data[header[j]] = value
			}
		}
		if len(data) == 0 {
			continue
		}

		// Bulk rows must carry every declared field; the required flag
		// only relaxes the single-record create path.
		missing := make([]string, 0)
		for fieldName, spec := range col.Schema.Fields {
			if _, present := data[fieldName]; present {
				continue
			}
			if spec.Default != nil {
				data[fieldName] = *spec.Default
				continue
			}
			missing = append(missing, fieldName)
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("row %d: missing fields: %s", line, strings.Join(missing, ", ")))
		}

		for fieldName, spec := range col.Schema.Fields {
			if !spec.Unique {
				continue
			}
			text := fmt.Sprint(data[fieldName])
			if seen[fieldName] == nil {
				seen[fieldName] = map[string]struct{}{}
			}
			if _, dup := seen[fieldName][text]; dup {
				return nil, appErrors.Clone(appErrors.ErrConflict,
					fmt.Sprintf("row %d: duplicate value for unique field %s", line, fieldName))
			}
			seen[fieldName][text] = struct{}{}

			exists, err := s.records.ExistsFieldValue(ctx, col.Ident(), fieldName, text)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check unique field")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict,
					fmt.Sprintf("row %d: duplicate value for unique field %s", line, fieldName))
			}
		}

		records = append(records, models.DynamicRecord{
			Data:        data,
			Status:      models.StatusPending,
			Submitted:   false,
			SubmittedBy: sctx.SubmittedBy,
			College:     sctx.College,
			Department:  sctx.Department,
		})
	}

	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file has no data rows")
	}
	return records, nil
}

func (s *ImportService) readRows(stagedName string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(stagedName)) {
	case ".csv":
		return s.readCSV(stagedName)
	case ".xlsx":
		return s.readXLSX(stagedName)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type, use .csv or .xlsx")
	}
}

func (s *ImportService) readCSV(stagedName string) ([][]string, error) {
	f, err := s.files.Open(stagedName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open staged upload")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "malformed CSV file")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *ImportService) readXLSX(stagedName string) ([][]string, error) {
	f, err := s.files.Open(stagedName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open staged upload")
	}
	defer f.Close()

	book, err := excelize.OpenReader(f)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "malformed spreadsheet file")
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "failed to read spreadsheet rows")
	}
	return rows, nil
}

func (s *ImportService) emitAudit(ctx context.Context, actor *models.JWTClaims, resource string, inserted int) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	values, _ := json.Marshal(map[string]int{"inserted": inserted})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &userID,
		Action:    models.AuditActionBulkImport,
		Resource:  resource,
		NewValues: values,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.Int("inserted", inserted), zap.Error(err))
	}
}
