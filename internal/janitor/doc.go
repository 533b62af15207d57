// Package janitor периодически чистит временную директорию docconv-api.
package janitor
