// Package ingest implements batch ingestion.
//
// A batch is validated in full before anything is written. Valid batches are
// stored in one transaction and every stored record is then broadcast to live
// subscribers in submission order. Delivery problems never fail ingestion.
package ingest
