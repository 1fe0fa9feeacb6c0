package core

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"
)

// UniquenessCheckTransition is one document transition participating in
// a standalone uniqueness check, per §4.4's "Uniqueness check
// (standalone)".
type UniquenessCheckTransition struct {
	DocumentID   Identifier
	ContractID   Identifier
	DocumentType string
	Props        map[string]string
	Metadata     DocumentTransitionMetadata
}

// CheckUniqueIndices runs one index query per transition per unique
// index, in parallel, and returns a ValidationResult whose errors are
// ordered by transition index regardless of completion order — the
// parallel fan-out must preserve per-transition ordering of errors in
// the merged validation result (§4.4).
//
// A transition's index query whose result set is empty, or whose single
// element is the transition's own document id, is unique; any other
// result adds DuplicateUniqueIndex.
func CheckUniqueIndices(ctx context.Context, backend Backend, tx TxHandle, indices []IndexDefinition, transitions []UniquenessCheckTransition) ValidationResult[struct{}] {
	uniqueIndices := make([]IndexDefinition, 0, len(indices))
	for _, idx := range indices {
		if idx.Unique {
			uniqueIndices = append(uniqueIndices, idx)
		}
	}

	perTransitionErrors := make([][]error, len(transitions))
	group, gctx := errgroup.WithContext(ctx)
	for i, transition := range transitions {
		i, transition := i, transition
		group.Go(func() error {
			errs, err := checkTransitionUniqueness(gctx, backend, tx, uniqueIndices, transition)
			if err != nil {
				return err
			}
			perTransitionErrors[i] = errs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return NewInvalidResult[struct{}](err)
	}

	var result ValidationResult[struct{}]
	for _, errs := range perTransitionErrors {
		result.Errors = append(result.Errors, errs...)
	}
	return result
}

func checkTransitionUniqueness(ctx context.Context, backend Backend, tx TxHandle, uniqueIndices []IndexDefinition, transition UniquenessCheckTransition) ([]error, error) {
	var errs []error
	for _, idx := range uniqueIndices {
		key := indexKeyComponents(idx, transition.Props, transition.Metadata)
		results, _, err := backend.Query(ctx, PathQuery{
			Path:    indexPath(transition.ContractID, transition.DocumentType, idx.Name),
			Clauses: []IndexQueryTriple{{Property: "key", Operator: "eq", Value: key}},
		}, tx)
		if err != nil {
			return nil, err
		}
		if isUniqueResult(results, key, transition.DocumentID) {
			continue
		}
		errs = append(errs, ErrDuplicateUniqueIndex(transition.DocumentID, idx.Properties))
	}
	return errs, nil
}

func isUniqueResult(results []QueryResult, key []byte, ownDocumentID Identifier) bool {
	var matching []QueryResult
	for _, r := range results {
		if bytes.Equal(r.Key, key) {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		return true
	}
	if len(matching) == 1 && matching[0].Element.Kind == ElementKindReference {
		ref := matching[0].Element.ReferencePath
		if len(ref) > 0 && ref[len(ref)-1] == string(ownDocumentID.Bytes()) {
			return true
		}
	}
	return false
}
