package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseRules decodes and validates a YAML rule set. Unknown keys are
// rejected. A rule without a default gets NotAvailable.
func ParseRules(r io.Reader) (RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		if err == io.EOF {
			return RuleSet{}, fmt.Errorf("%w: rule file is empty", ErrInvalidRule)
		}
		return RuleSet{}, fmt.Errorf("decode rules: %w", err)
	}
	if rs.Section.Start == "" {
		rs.Section.Start = DefaultSectionStart
		if rs.Section.End == "" {
			rs.Section.End = DefaultSectionEnd
		}
	}
	for i := range rs.Rules {
		if rs.Rules[i].Default == "" {
			rs.Rules[i].Default = NotAvailable
		}
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// LoadRuleFile reads and validates the YAML rule set at path.
func LoadRuleFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rule file: %w", err)
	}
	rs, err := ParseRules(bytes.NewReader(data))
	if err != nil {
		return RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// WriteRules encodes rs as YAML.
func WriteRules(w io.Writer, rs RuleSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rs); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
