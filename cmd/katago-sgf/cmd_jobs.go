package main

import (
	"errors"

	"github.com/samber/lo"

	"github.com/d2verb/katago-sgf/internal/client"
	"github.com/d2verb/katago-sgf/internal/protocol"
	"github.com/d2verb/katago-sgf/internal/ui"
)

type JobsCmd struct{}

func (c *JobsCmd) Run(g *Globals) error {
	_, cfg, err := g.load()
	if err != nil {
		return err
	}
	cl, err := newClient(cfg)
	if err != nil {
		return err
	}

	jobs, err := cl.ListJobs()
	if errors.Is(err, client.ErrUnreachable) {
		return errDaemonNotRunning()
	}
	if err != nil {
		return err
	}

	ui.PrintJobList(jobInfos(jobs))
	return nil
}

func jobInfos(jobs []protocol.Job) []ui.JobInfo {
	return lo.Map(jobs, func(j protocol.Job, _ int) ui.JobInfo {
		return ui.JobInfo{
			Filename:      j.Filename,
			Status:        j.Status,
			MaxVariations: j.MaxVariations,
			MaxVisits:     j.MaxVisits,
			SubmittedAt:   j.SubmittedAt,
		}
	})
}
