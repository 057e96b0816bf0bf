package main

import (
	"github.com/flashbots/ppcalc/generator"
	"github.com/spf13/pflag"
)

// distributionValue lets a generator.Distribution be set from the command
// line.
type distributionValue struct {
	d *generator.Distribution
}

var _ pflag.Value = (*distributionValue)(nil)

func (v *distributionValue) String() string {
	if v.d == nil || v.d.Kind == "" {
		return ""
	}
	return v.d.String()
}

func (v *distributionValue) Set(s string) error {
	return v.d.UnmarshalText([]byte(s))
}

func (v *distributionValue) Type() string { return "DISTRIBUTION" }

type selectionValue struct {
	s *generator.DestinationSelection
}

var _ pflag.Value = (*selectionValue)(nil)

func (v *selectionValue) String() string {
	if v.s == nil {
		return ""
	}
	return string(*v.s)
}

func (v *selectionValue) Set(s string) error {
	sel, err := generator.ParseDestinationSelection(s)
	if err != nil {
		return err
	}
	*v.s = sel
	return nil
}

func (v *selectionValue) Type() string { return "uniform|roundrobin|normal" }
