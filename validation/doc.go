// Package validation checks OFD containers against EMR technical
// requirements and reports findings instead of failing.
//
// A run loads the container, checks its layout with ofd.CheckStructure,
// inspects OFD.xml and every XML entry, reads the whole document and adds
// advisory warnings. The result is a Report whose Passed field is false as
// soon as any finding has Error severity:
//
//	v := validation.New(validation.WithLogger(logger))
//	report, err := v.Validate(ctx, f, validation.DefaultProfile())
//
// Profiles are plain values. They are parsed from JSONC, YAML or TOML with
// ParseProfile or ReadProfileFile; DefaultProfile returns the built-in one.
package validation
