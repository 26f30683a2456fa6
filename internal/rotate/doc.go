// Package rotate replaces a document's secret field values with freshly
// generated ones without touching its recipient set. Documents are
// env-style KEY=value text; classification (database credential, API key,
// generic) is inferred from field names with an explicit annotation
// override.
package rotate
