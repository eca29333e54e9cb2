package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentService interface {
	CreateDraftDocument(ctx context.Context, companyID int, typeCode string, financialYear *int, branchID *int) (int, error)
	CreateDraftDocumentTx(ctx context.Context, tx pgx.Tx, companyID int, typeCode string, financialYear *int, branchID *int) (int, error)
	// PostDocument posts a document in its own transaction and returns its number.
	PostDocument(ctx context.Context, documentID int) (string, error)
	// PostDocumentTx posts a document using an existing transaction. Use when the
	// caller controls the transaction boundary so that numbering and the business
	// write that consumes the number commit or roll back together.
	PostDocumentTx(ctx context.Context, tx pgx.Tx, documentID int) (string, error)
	// IssueNumberTx creates and posts a document in one step, returning the
	// gapless number. Used for PO and GRN numbering.
	IssueNumberTx(ctx context.Context, tx pgx.Tx, companyID int, typeCode string, financialYear int) (string, error)
}

type documentService struct {
	pool *pgxpool.Pool
}

func NewDocumentService(pool *pgxpool.Pool) DocumentService {
	return &documentService{pool: pool}
}

func (s *documentService) CreateDraftDocument(ctx context.Context, companyID int, typeCode string, financialYear *int, branchID *int) (int, error) {
	return createDraftDocument(ctx, s.pool, companyID, typeCode, financialYear, branchID)
}

func (s *documentService) CreateDraftDocumentTx(ctx context.Context, tx pgx.Tx, companyID int, typeCode string, financialYear *int, branchID *int) (int, error) {
	return createDraftDocument(ctx, tx, companyID, typeCode, financialYear, branchID)
}

func createDraftDocument(ctx context.Context, q querier, companyID int, typeCode string, financialYear *int, branchID *int) (int, error) {
	var id int
	err := q.QueryRow(ctx, `
		INSERT INTO documents (company_id, type_code, status, financial_year, branch_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, companyID, typeCode, string(DocumentStatusDraft), financialYear, branchID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create draft document: %w", err)
	}
	return id, nil
}

func (s *documentService) PostDocument(ctx context.Context, documentID int) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	number, err := postDocumentWithTx(ctx, tx, documentID)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return number, nil
}

func (s *documentService) PostDocumentTx(ctx context.Context, tx pgx.Tx, documentID int) (string, error) {
	return postDocumentWithTx(ctx, tx, documentID)
}

func (s *documentService) IssueNumberTx(ctx context.Context, tx pgx.Tx, companyID int, typeCode string, financialYear int) (string, error) {
	docID, err := createDraftDocument(ctx, tx, companyID, typeCode, &financialYear, nil)
	if err != nil {
		return "", err
	}
	return postDocumentWithTx(ctx, tx, docID)
}

func postDocumentWithTx(ctx context.Context, tx pgx.Tx, documentID int) (string, error) {
	var doc Document
	err := tx.QueryRow(ctx, `
		SELECT company_id, type_code, status, financial_year, branch_id
		FROM documents
		WHERE id = $1
		FOR UPDATE
	`, documentID).Scan(&doc.CompanyID, &doc.TypeCode, &doc.Status, &doc.FinancialYear, &doc.BranchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notFound("document", documentID)
		}
		return "", fmt.Errorf("failed to read document for update: %w", err)
	}

	if doc.Status != DocumentStatusDraft {
		return "", fmt.Errorf("document must be in DRAFT status to be posted, current status: %s: %w", doc.Status, ErrInvalidState)
	}

	var docType DocumentType
	err = tx.QueryRow(ctx, `
		SELECT numbering_strategy, resets_every_fy
		FROM document_types
		WHERE code = $1
	`, doc.TypeCode).Scan(&docType.NumberingStrategy, &docType.ResetsEveryFY)
	if err != nil {
		return "", fmt.Errorf("failed to get document type strategy: %w", err)
	}

	// Global sequences ignore the financial year.
	seqYear := doc.FinancialYear
	if !docType.ResetsEveryFY {
		seqYear = nil
	}

	// The upsert row lock serializes concurrent posters per sequence, keeping numbers gapless.
	var lastNumber int64
	err = tx.QueryRow(ctx, `
		INSERT INTO document_sequences (company_id, type_code, financial_year, branch_id, last_number)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (company_id, type_code, (COALESCE(financial_year, -1)), (COALESCE(branch_id, -1)))
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`, doc.CompanyID, doc.TypeCode, seqYear, doc.BranchID).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate gapless sequence number: %w", err)
	}

	yearStr := "GLOBAL"
	if seqYear != nil {
		yearStr = fmt.Sprintf("%d", *seqYear)
	}
	branchStr := ""
	if doc.BranchID != nil {
		branchStr = fmt.Sprintf("B%d-", *doc.BranchID)
	}
	formattedNum := fmt.Sprintf("%s-%s%s-%05d", doc.TypeCode, branchStr, yearStr, lastNumber)

	_, err = tx.Exec(ctx, `
		UPDATE documents
		SET status = $1, document_number = $2, posted_at = NOW()
		WHERE id = $3
	`, string(DocumentStatusPosted), formattedNum, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to update document status and number: %w", err)
	}

	return formattedNum, nil
}
