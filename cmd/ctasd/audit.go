package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/storage"
)

var auditOpts struct {
	limit     int
	offset    int
	level     string
	zone      string
	asJSON    bool
	olderThan time.Duration
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the dispatch audit history",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, newest first",
	RunE:  runAuditList,
}

var auditShowCmd = &cobra.Command{
	Use:   "show <dispatch-id>",
	Short: "Show one audit record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit records older than the retention period",
	RunE:  runAuditPrune,
}

func init() {
	lf := auditListCmd.Flags()
	lf.IntVar(&auditOpts.limit, "limit", 20, "maximum records to list")
	lf.IntVar(&auditOpts.offset, "offset", 0, "records to skip")
	lf.StringVar(&auditOpts.level, "level", "", "only records of this threat level")
	lf.StringVar(&auditOpts.zone, "zone", "", "only records for this zone")
	lf.BoolVar(&auditOpts.asJSON, "json", false, "print JSON instead of a table")

	auditPruneCmd.Flags().DurationVar(&auditOpts.olderThan, "older-than", 0, "override audit.retention")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditPruneCmd)
}

func openAuditStore() (*storage.SQLiteAuditStore, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLiteAuditStore(logger, cfg.Audit.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		store.Close()
		logger.Sync()
	}, nil
}

func runAuditList(cmd *cobra.Command, _ []string) error {
	store, done, err := openAuditStore()
	if err != nil {
		return err
	}
	defer done()

	filter := storage.AuditFilter{
		ThreatLevel: model.ThreatLevel(strings.ToUpper(auditOpts.level)),
		Zone:        auditOpts.zone,
	}
	records, err := store.List(cmd.Context(), filter, auditOpts.offset, auditOpts.limit)
	if err != nil {
		return err
	}

	if auditOpts.asJSON {
		return printJSON(cmd.OutOrStdout(), records)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tLEVEL\tZONE\tUSERS\tEMAIL\tSMS\tPUSH\tFAILED\tSUCCESS\tREASON")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%t\t%s\n",
			r.ID, r.Timestamp.Format(time.RFC3339), r.ThreatLevel, r.Zone,
			r.TotalUsers, r.EmailSent, r.SMSSent, r.PushSent, r.Failed, r.Success, r.Reason)
	}
	return w.Flush()
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	store, done, err := openAuditStore()
	if err != nil {
		return err
	}
	defer done()

	rec, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func runAuditPrune(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := storage.NewSQLiteAuditStore(logger, cfg.Audit.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	retention := cfg.Audit.Retention
	if auditOpts.olderThan > 0 {
		retention = auditOpts.olderThan
	}

	n, err := storage.NewPruner(store, retention, logger).Prune(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit records\n", n)
	return nil
}
