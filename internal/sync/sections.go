package sync

import (
	"context"
	"fmt"
	"log"
)

// Provisioned is the outcome of section provisioning.
type Provisioned struct {
	Index *SectionIndex

	// Failed holds the stages that could not be found or created. Their
	// warnings are already in Warnings.
	Failed map[string]bool

	Warnings []string
}

// SectionProvisioner ensures the canonical stage sections exist.
type SectionProvisioner struct {
	tracker Tracker
	stages  Stages
	logger  *log.Logger
}

// NewSectionProvisioner creates a provisioner for the given stages.
func NewSectionProvisioner(t Tracker, stages Stages, logger *log.Logger) *SectionProvisioner {
	return &SectionProvisioner{tracker: t, stages: stages, logger: logger}
}

// Provision lists the project's sections once and creates the missing
// stages. A stage that cannot be created is a warning; only credential
// failures are fatal. If listing fails nothing is created, since creating
// blindly could duplicate sections that already exist.
func (p *SectionProvisioner) Provision(ctx context.Context, projectID string) Outcome[*Provisioned] {
	res := &Provisioned{Failed: make(map[string]bool)}

	sections, err := p.tracker.ListSections(ctx, projectID)
	if err != nil {
		o := fromRemote(res, fmt.Errorf("failed to list sections: %w", err))
		if o.IsFatal() {
			return o
		}
		res.Index = NewSectionIndex(p.stages, nil)
		for _, stage := range p.stages {
			res.Failed[stage] = true
		}
		res.Warnings = append(res.Warnings, o.Reason())
		return Warning(res, o.Err)
	}

	res.Index = NewSectionIndex(p.stages, sections)
	for _, stage := range p.stages {
		if res.Index.Lookup(stage) != "" {
			continue
		}
		o := p.createSection(ctx, projectID, stage)
		switch {
		case o.IsFatal():
			return Fatal[*Provisioned](o.Err)
		case o.IsWarning():
			res.Failed[stage] = true
			res.Warnings = append(res.Warnings, o.Reason())
		default:
			res.Index.Add(stage, o.Value)
		}
	}

	if len(res.Warnings) > 0 {
		return Warning(res, fmt.Errorf("%d of %d sections unavailable", len(res.Failed), len(p.stages)))
	}
	return Ok(res)
}

func (p *SectionProvisioner) createSection(ctx context.Context, projectID, stage string) Outcome[string] {
	sec, err := p.tracker.CreateSection(context.WithoutCancel(ctx), projectID, stage)
	if err != nil {
		return fromRemote("", fmt.Errorf("failed to create section %q: %w", stage, err))
	}
	p.logger.Printf("Created section %q (%s)", stage, sec.GID)
	return Ok(sec.GID)
}
