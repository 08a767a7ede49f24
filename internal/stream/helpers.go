package stream

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLRowScanner scans one cursor row into T.
type SQLRowScanner[T any] func(rows *sql.Rows) (T, error)

// SQLFetcher builds a DataFetcher over a live cursor. Rows are closed when
// the fetcher finishes; scan failures and iteration errors go to the error
// channel.
func SQLFetcher[T any](rows *sql.Rows, scanner SQLRowScanner[T]) DataFetcher[T] {
	return func(ctx context.Context) (<-chan T, <-chan error) {
		dataChan := make(chan T, 10)
		errChan := make(chan error, 1)

		go func() {
			defer close(dataChan)
			defer close(errChan)
			defer rows.Close()

			for rows.Next() {
				select {
				case <-ctx.Done():
					return
				default:
				}

				item, err := scanner(rows)
				if err != nil {
					errChan <- fmt.Errorf("failed to scan row: %w", err)
					return
				}

				select {
				case dataChan <- item:
				case <-ctx.Done():
					return
				}
			}

			if err := rows.Err(); err != nil {
				errChan <- fmt.Errorf("error iterating rows: %w", err)
			}
		}()

		return dataChan, errChan
	}
}

// SliceFetcher builds a DataFetcher over in-memory items. Mostly for tests.
func SliceFetcher[T any](items []T) DataFetcher[T] {
	return func(ctx context.Context) (<-chan T, <-chan error) {
		dataChan := make(chan T, 10)
		errChan := make(chan error, 1)

		go func() {
			defer close(dataChan)
			defer close(errChan)

			for _, item := range items {
				select {
				case dataChan <- item:
				case <-ctx.Done():
					return
				}
			}
		}()

		return dataChan, errChan
	}
}

// PassThroughTransformer returns items unchanged.
func PassThroughTransformer[T any]() Transformer[T] {
	return func(item T) (interface{}, error) {
		return item, nil
	}
}
