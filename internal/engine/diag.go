package engine

import (
	"context"
	"fmt"
	"strings"
)

// ProbeResult is the outcome of one diagnostic probe.
type ProbeResult struct {
	Name     string
	Location string
	Err      error
	Skipped  bool
}

// OK reports whether the probe succeeded.
func (p ProbeResult) OK() bool { return p.Err == nil && !p.Skipped }

// Report summarizes what the resolver can see, without changing its state.
type Report struct {
	State         State
	RemoteAllowed bool
	Capability    error
	Libraries     []ProbeResult
	Models        []ProbeResult
	RemoteModel   *ProbeResult
	Selection     ModelSelection
}

// Diagnose probes capability, every library source and every model manifest.
func (r *Resolver) Diagnose(ctx context.Context) Report {
	rep := Report{
		State:         r.State(),
		RemoteAllowed: r.gate.RemoteAllowed(),
		Capability:    r.capability.Check(ctx),
		Selection:     r.Selection(),
	}
	for _, src := range r.sources {
		res := ProbeResult{Name: src.Name(), Location: src.Location()}
		if src.Remote() && !rep.RemoteAllowed {
			res.Skipped = true
			res.Err = ErrRemoteDisabled
		} else {
			_, res.Err = src.Load(ctx)
		}
		rep.Libraries = append(rep.Libraries, res)
	}
	for _, p := range r.ManifestProbes() {
		rep.Models = append(rep.Models, ProbeResult{Name: p.Model, Location: p.Location, Err: r.prober.Exists(ctx, p.Location)})
	}
	if rm := r.cfg.RemoteModel; rm != nil && rm.Location != "" {
		res := ProbeResult{Name: rm.ID, Location: rm.Location}
		if !rep.RemoteAllowed {
			res.Skipped = true
			res.Err = ErrRemoteDisabled
		} else {
			_, res.Err = r.checkRemoteModel(ctx, *rm)
		}
		rep.RemoteModel = &res
	}
	return rep
}

// String renders the report as plain text lines.
func (rep Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "engine state: %s\n", rep.State)
	fmt.Fprintf(&b, "remote access: %s\n", yesNo(rep.RemoteAllowed))
	if rep.Capability != nil {
		fmt.Fprintf(&b, "capability: missing (%v)\n", rep.Capability)
	} else {
		b.WriteString("capability: ok\n")
	}
	b.WriteString("libraries:\n")
	for _, l := range rep.Libraries {
		fmt.Fprintf(&b, "  %s %s %s\n", mark(l), l.Name, l.Location)
	}
	b.WriteString("models:\n")
	for _, m := range rep.Models {
		fmt.Fprintf(&b, "  %s %s\n", mark(m), m.Location)
	}
	if rep.RemoteModel != nil {
		fmt.Fprintf(&b, "remote model:\n  %s %s %s\n", mark(*rep.RemoteModel), rep.RemoteModel.Name, rep.RemoteModel.Location)
		if rep.RemoteModel.Err != nil && !rep.RemoteModel.Skipped {
			fmt.Fprintf(&b, "    %v\n", rep.RemoteModel.Err)
		}
	}
	if rep.Selection.ID != "" {
		fmt.Fprintf(&b, "selected model: %s\n", rep.Selection.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func mark(p ProbeResult) string {
	switch {
	case p.Skipped:
		return "[skip]"
	case p.Err != nil:
		return "[fail]"
	}
	return "[ ok ]"
}

func yesNo(b bool) string {
	if b {
		return "allowed"
	}
	return "disabled"
}
