// Package dataset loads sea level tables into domain.Dataset values.
//
// Supported inputs:
//
//   - CSV, parsed with gota's dataframe reader
//   - XLSX workbooks (first sheet), read with excelize
//   - Google Sheets ranges, fetched through the Sheets v4 API
//   - The embedded synthetic sample (EPA column layout) shipped with the binary
//
// Every loader funnels into the same frame conversion: the configured year
// and level columns are coerced to float, rows where either is missing or
// non-numeric are dropped and counted, and the remaining observations are
// ordered by year. Each dataset is identified by a BLAKE2b fingerprint of
// its source bytes and column selection, which is also the key of Cache.
package dataset
