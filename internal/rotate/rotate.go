package rotate

import (
	"context"
	"crypto/rsa"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/halcyonlabs/keywarden/internal/docs"
	"github.com/halcyonlabs/keywarden/internal/gateway"
	"github.com/halcyonlabs/keywarden/internal/registry"

	"github.com/google/uuid"
)

// Classification tags what kind of secret material a document holds,
// inferred from its field names.
type Classification string

const (
	ClassDatabaseCredential Classification = "database-credential"
	ClassAPIKey             Classification = "api-key"
	ClassGeneric            Classification = "generic"
)

// classAnnotation lets a document pin its classification explicitly,
// overriding inference: "# keywarden-class: database-credential".
const classAnnotation = "# keywarden-class:"

// rotatedAnnotation marks when the document's values were last rotated.
const rotatedAnnotation = "# rotated"

// secretFieldRe matches field names that carry secret-bearing values.
var secretFieldRe = regexp.MustCompile(`(?i)(password|passwd|token|secret|key|credential)`)

// databaseFieldRe marks a document as database-shaped.
var databaseFieldRe = regexp.MustCompile(`(?i)(database|db_|_db|postgres|mysql|dsn|jdbc)`)

// Options configures a rotation.
type Options struct {
	// Selectors restricts rotation to fields whose names match one of
	// these patterns (case-insensitive substring). Empty means every
	// secret-bearing field.
	Selectors []string

	// Key is the caller's private key used to decrypt the document.
	Key *rsa.PrivateKey

	// Generator supplies fresh secret values. Defaults to RandomGenerator.
	Generator Generator

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// Record describes a completed rotation.
type Record struct {
	ID                   string         `json:"id"`
	Path                 string         `json:"path"`
	Classification       Classification `json:"classification"`
	Timestamp            time.Time      `json:"timestamp"`
	FieldsChanged        int            `json:"fields_changed"`
	ManualUpdateRequired bool           `json:"manual_update_required,omitempty"`
}

// Rotate decrypts the document at path, replaces the values of its
// secret-bearing fields with freshly generated ones, and re-encrypts it
// for the registry's current expected recipient set. Rotation never
// widens or narrows the recipient set; it is a content-only operation.
//
// Documents with no recognizable secret fields get only a rotation
// timestamp annotation and are flagged ManualUpdateRequired.
func Rotate(ctx context.Context, path string, reg *registry.Registry, store docs.Store, gw gateway.Gateway, opts Options) (*Record, error) {
	if opts.Generator == nil {
		opts.Generator = RandomGenerator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	plaintext, err := gw.Decrypt(ctx, path, opts.Key)
	if err != nil {
		return nil, err
	}

	now := opts.Now().UTC()
	rewritten, class, changed, err := rewrite(string(plaintext), opts, now)
	if err != nil {
		return nil, fmt.Errorf("rotating %s: %w", path, err)
	}

	expected := reg.ResolveRecipients(path)
	recipients := make([]gateway.Recipient, 0, len(expected))
	for _, p := range expected {
		pub, err := p.Key()
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", p.Name, err)
		}
		recipients = append(recipients, gateway.Recipient{Name: p.Name, Key: pub})
	}

	sealed, err := gw.Encrypt(ctx, []byte(rewritten), recipients)
	if err != nil {
		return nil, err
	}
	if err := store.Write(path, sealed); err != nil {
		return nil, fmt.Errorf("writing rotated document: %w", err)
	}

	return &Record{
		ID:                   uuid.New().String(),
		Path:                 path,
		Classification:       class,
		Timestamp:            now,
		FieldsChanged:        changed,
		ManualUpdateRequired: changed == 0,
	}, nil
}

// rewrite replaces secret field values line by line, preserving comments,
// blank lines, and field order.
func rewrite(content string, opts Options, now time.Time) (string, Classification, int, error) {
	lines := strings.Split(content, "\n")

	var fieldNames []string
	for _, line := range lines {
		if name, _, ok := parseField(line); ok {
			fieldNames = append(fieldNames, name)
		}
	}

	class := classify(lines, fieldNames)
	kind := "token"
	length := 48
	if class == ClassDatabaseCredential {
		kind = "password"
		length = 32
	}

	changed := 0
	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		// Drop any previous rotation annotation; a fresh one is appended.
		if strings.HasPrefix(strings.TrimSpace(line), rotatedAnnotation+" ") {
			continue
		}

		name, _, ok := parseField(line)
		if !ok || !isRotatable(name, opts.Selectors) {
			out = append(out, line)
			continue
		}

		value, err := opts.Generator.Generate(kind, length)
		if err != nil {
			return "", class, 0, fmt.Errorf("generating %s value: %w", kind, err)
		}
		out = append(out, name+"="+value)
		changed++
	}

	// Trim a single trailing blank line so the annotation lands at the end.
	if len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	annotation := fmt.Sprintf("%s %s", rotatedAnnotation, now.Format(time.RFC3339))
	if changed == 0 {
		annotation += " (manual update required)"
	}
	out = append(out, annotation, "")

	return strings.Join(out, "\n"), class, changed, nil
}

// classify inspects field names to pick a rotation class. Inference is
// fuzzy, so an explicit "# keywarden-class:" annotation wins, and a
// document with no secret-bearing fields falls back to generic.
func classify(lines []string, fieldNames []string) Classification {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, classAnnotation) {
			switch Classification(strings.TrimSpace(strings.TrimPrefix(trimmed, classAnnotation))) {
			case ClassDatabaseCredential:
				return ClassDatabaseCredential
			case ClassAPIKey:
				return ClassAPIKey
			case ClassGeneric:
				return ClassGeneric
			}
		}
	}

	hasSecret := false
	for _, name := range fieldNames {
		if secretFieldRe.MatchString(name) {
			hasSecret = true
			break
		}
	}
	if !hasSecret {
		return ClassGeneric
	}

	for _, name := range fieldNames {
		if databaseFieldRe.MatchString(name) {
			return ClassDatabaseCredential
		}
	}
	return ClassAPIKey
}

// parseField splits an env-style "NAME=value" line.
func parseField(line string) (name, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(trimmed[:idx]), trimmed[idx+1:], true
}

// isRotatable reports whether a field should have its value replaced.
func isRotatable(name string, selectors []string) bool {
	if !secretFieldRe.MatchString(name) {
		return false
	}
	if len(selectors) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, sel := range selectors {
		if strings.Contains(lower, strings.ToLower(sel)) {
			return true
		}
	}
	return false
}
