// cmd/migrator/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"asset-migrator/internal/clients/acf"
	"asset-migrator/internal/clients/apm"
	"asset-migrator/internal/clients/erp"
	"asset-migrator/internal/clients/iot"
	"asset-migrator/internal/common/config"
	"asset-migrator/internal/common/database"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/pipeline"
	"asset-migrator/internal/store"
	"asset-migrator/internal/transform"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime carries everything a subcommand needs after setup.
type runtime struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	pg     *database.PostgresClient
	store  *store.Store
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "migrator",
		Short:         "Stages SAP asset master data and migrates indicators into APM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the tenant config file")

	root.AddCommand(
		newInitDBCmd(&configFile),
		newExtractCmd(&configFile),
		newTransformCmd(&configFile),
		newLoadCmd(&configFile),
		newDownloadCmd(&configFile),
		newUploadCmd(&configFile),
		newStatusCmd(&configFile),
	)
	return root
}

func setup(configFile string) (*runtime, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(context.Background()); err != nil {
		pg.Close()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address, zapLog)
	}

	return &runtime{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		pg:     pg,
		store:  store.New(pg, cfg.Tenant, log),
	}, nil
}

func (r *runtime) close() {
	r.pg.Close()
	r.zapLog.Sync()
}

func serveMetrics(address string, zapLog *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(address, mux); err != nil {
		zapLog.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

func (r *runtime) newPipeline() (*pipeline.Pipeline, error) {
	acfClient, err := acf.New(r.cfg, r.log)
	if err != nil {
		return nil, err
	}
	apmClient, err := apm.New(r.cfg, apm.IndicatorService, r.log)
	if err != nil {
		return nil, err
	}
	erpClient, err := erp.New(r.cfg, r.log)
	if err != nil {
		return nil, err
	}
	return pipeline.New(r.cfg, r.store, acfClient, apmClient, erpClient, r.log), nil
}

func newInitDBCmd(configFile *string) *cobra.Command {
	var dropFirst bool

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the staging tables and mapping views",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer r.close()

			ctx := cmd.Context()
			if dropFirst || r.cfg.Migration.DropReload {
				if err := r.store.DropAll(ctx); err != nil {
					return err
				}
			}
			return r.store.CreateAll(ctx)
		},
	}
	cmd.Flags().BoolVar(&dropFirst, "drop", false, "drop all tables and views first")
	return cmd
}

func newExtractCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Pull ACF, APM and ERP data into the staging tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer r.close()

			p, err := r.newPipeline()
			if err != nil {
				return err
			}
			return p.Extract(cmd.Context())
		},
	}
}

func newTransformCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Seed the decision table and resolve the indicator mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer r.close()

			p, err := r.newPipeline()
			if err != nil {
				return err
			}
			return p.Transform(cmd.Context())
		},
	}
}

func newLoadCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Create indicator positions and indicators in APM",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer r.close()

			p, err := r.newPipeline()
			if err != nil {
				return err
			}
			return p.Load(cmd.Context())
		},
	}
}

func newStatusCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print row counts per staging table",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer r.close()

			p, err := r.newPipeline()
			if err != nil {
				return err
			}
			counts, err := p.Status(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %d\n", name, counts[name])
			}
			return nil
		},
	}
}

func newDownloadCmd(configFile *string) *cobra.Command {
	var group, fromStr, toStr string
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Export and download time series data from the IoT cold store",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer r.close()

			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fmt.Errorf("invalid --from date: %w", err)
			}
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fmt.Errorf("invalid --to date: %w", err)
			}

			iotClient, err := iot.New(r.cfg, r.log)
			if err != nil {
				return err
			}
			return downloadExports(cmd.Context(), r, iotClient, group, from, to, pollInterval)
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "property set group to export")
	cmd.Flags().StringVar(&fromStr, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 30*time.Second, "export status poll interval")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newUploadCmd(configFile *string) *cobra.Command {
	var file, object, objectType, thingID string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a time series file to the Embedded IoT file service",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer r.close()

			apmClient, err := apm.New(r.cfg, apm.IndicatorService, r.log)
			if err != nil {
				return err
			}
			eiotClient := apm.NewEIoT(apmClient)

			return uploadFile(cmd.Context(), r, eiotClient, uploadParams{
				file:       file,
				object:     object,
				objectType: objectType,
				thingID:    thingID,
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path of the parquet file to upload")
	cmd.Flags().StringVar(&object, "object", "", "technical object number the data belongs to")
	cmd.Flags().StringVar(&objectType, "type", "EQU", "technical object type (EQU or FLOC)")
	cmd.Flags().StringVar(&thingID, "thing", "", "IoT thing external id to verify the ACF assignment of")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("object")
	return cmd
}

type uploadParams struct {
	file       string
	object     string
	objectType string
	thingID    string
}

// uploadFile checks the indicator metadata has replicated into Embedded IoT,
// then submits the file and reports the processing status once. The thing
// assignment lookup is cached in Redis so bulk uploads only hit ACF once per
// thing.
func uploadFile(ctx context.Context, r *runtime, eiotClient *apm.EIoTClient, params uploadParams) error {
	ssid, err := eiotClient.ProbeSSID(ctx)
	if err != nil {
		return err
	}
	if ssid != eiotClient.ERPSSID() {
		r.log.Warn("configured SSID differs from synced technical objects", map[string]interface{}{
			"configured": eiotClient.ERPSSID(),
			"synced":     ssid,
		})
	}

	if params.thingID != "" {
		objectID, err := resolveThingObject(ctx, r, params.thingID)
		if err != nil {
			return err
		}
		r.log.Info("thing assignment verified", map[string]interface{}{
			"thing":  params.thingID,
			"object": objectID,
		})
	}

	synced, err := eiotClient.GetSyncedTechnicalObject(ctx, params.object, params.objectType)
	if err != nil {
		return err
	}
	r.log.Info("technical object sync status", map[string]interface{}{
		"object": params.object,
		"status": synced["technicalObjectSyncStatus"],
	})

	content, err := os.Open(params.file)
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}
	defer content.Close()

	ack, err := eiotClient.UploadFile(ctx, filepath.Base(params.file), content)
	if err != nil {
		return err
	}

	status, err := eiotClient.GetFileStatus(ctx, ack.FileID)
	if err != nil {
		return err
	}
	r.log.Info("file upload submitted", map[string]interface{}{
		"fileId": ack.FileID,
		"status": status["status"],
	})
	return nil
}

// resolveThingObject maps an IoT thing external id to its assigned ACF object
// id, going through the Redis cache when one is configured.
func resolveThingObject(ctx context.Context, r *runtime, thingID string) (string, error) {
	acfClient, err := acf.New(r.cfg, r.log)
	if err != nil {
		return "", err
	}

	resolve := func(ctx context.Context, externalID string) (string, error) {
		row, err := acfClient.GetObjectByThingID(ctx, externalID)
		if err != nil {
			return "", err
		}
		return transform.Stringify(row["ainObjectId"]), nil
	}

	if r.cfg.Database.Redis.Address == "" {
		return resolve(ctx, thingID)
	}

	rc, err := database.NewRedis(r.cfg.Database.Redis)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return store.NewObjectCache(rc, r.cfg.Tenant).GetOrResolve(ctx, "thing", thingID, resolve)
}

// downloadExports runs the cold store export workflow slice by slice:
// initiate, poll until the file is ready, then stream it to disk.
func downloadExports(ctx context.Context, r *runtime, iotClient *iot.Client, group string, from, to time.Time, pollInterval time.Duration) error {
	if err := os.MkdirAll(r.cfg.Migration.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	for _, slice := range iot.YearlySlices(from, to) {
		requestID, err := iotClient.InitiateDataExport(ctx, group, slice[0], slice[1])
		if err != nil {
			return err
		}
		if requestID == "" {
			return fmt.Errorf("cold store returned no request id for group %s", group)
		}

		for {
			status, err := iotClient.GetDataExportStatus(ctx, requestID)
			if err != nil {
				return err
			}
			if status == iot.StatusReadyForDownload {
				break
			}
			r.log.Info("export not ready", map[string]interface{}{
				"requestId": requestID,
				"status":    status,
			})

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		}

		path := filepath.Join(r.cfg.Migration.DownloadDir, requestID+".zip")
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create download file: %w", err)
		}

		if _, err := iotClient.DownloadData(ctx, requestID, file); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
		r.log.Info("export downloaded", map[string]interface{}{"file": path})
	}
	return nil
}
