/*
 * @module cmd/fairness-audit/commands
 * @description 命令行子命令：报告、交叉统计、摘要和 CSV 导出
 * @architecture cobra 命令树
 * @stateFlow 参数 -> 加载 CSV -> 筛选 -> 计算 -> 标准输出或文件
 * @rules 日志写入标准错误，标准输出只包含结果
 * @dependencies github.com/spf13/cobra, service/audit, service/export
 * @refs main.go
 */

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fairness-audit-service/service/audit"
	"fairness-audit-service/service/config"
	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/export"
	"fairness-audit-service/service/ingestion"
)

// cliOptions 全局参数
type cliOptions struct {
	thresholdsFile string
	yearMin        int
	yearMax        int
	offense        string
	city           string
	dimension      string
	delimiter      string
	output         string
	pseudonymKey   string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:          "fairness-audit",
		Short:        "Sentencing fairness audit over court case CSV files",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.thresholdsFile, "thresholds", "", "threshold file (yaml or json)")
	flags.IntVar(&opts.yearMin, "year-min", 0, "first received year to include")
	flags.IntVar(&opts.yearMax, "year-max", 0, "last received year to include")
	flags.StringVar(&opts.offense, "offense", disparity.AllValue, "offense category, All for no restriction")
	flags.StringVar(&opts.city, "city", disparity.AllValue, "incident city, All for no restriction")
	flags.StringVar(&opts.delimiter, "delimiter", "", "input and export delimiter: , ; tab |, empty to detect input")
	flags.StringVarP(&opts.output, "output", "o", "", "output file, stdout when empty")
	flags.StringVar(&opts.pseudonymKey, "pseudonym-key", "", "key for pseudonymizing exported identifiers")

	report := &cobra.Command{
		Use:   "report <cases.csv>",
		Short: "Print the disparity report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0], opts.writeReport)
		},
	}
	report.Flags().StringVar(&opts.dimension, "dimension", string(disparity.DimensionRace), "race, gender, age_group or intersection")

	intersectional := &cobra.Command{
		Use:   "intersectional <cases.csv>",
		Short: "Print race x gender x age group rows as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0], func(w io.Writer, records []ingestion.CanonicalCase, _ disparity.FilterSpec) error {
				return writeJSON(w, disparity.ComputeIntersectional(records))
			})
		},
	}

	summary := &cobra.Command{
		Use:   "summary <cases.csv>",
		Short: "Print a plain-text digest of the filtered records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0], func(w io.Writer, records []ingestion.CanonicalCase, _ disparity.FilterSpec) error {
				_, err := io.WriteString(w, export.BuildDigest(records))
				return err
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:       "export <records|groups|intersectional> <cases.csv>",
		Short:     "Export filtered records or summaries as CSV",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"records", "groups", "intersectional"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[1], func(w io.Writer, records []ingestion.CanonicalCase, _ disparity.FilterSpec) error {
				return opts.writeExport(w, args[0], records)
			})
		},
	}
	exportCmd.Flags().StringVar(&opts.dimension, "dimension", string(disparity.DimensionRace), "grouping dimension for the groups export")

	root.AddCommand(report, intersectional, summary, exportCmd)
	return root
}

type writeFunc func(w io.Writer, records []ingestion.CanonicalCase, filter disparity.FilterSpec) error

// run 加载输入文件、应用筛选条件并写出结果
func (o *cliOptions) run(cmd *cobra.Command, path string, write writeFunc) error {
	delimiter, err := ingestion.ParseDelimiter(o.delimiter)
	if err != nil {
		return err
	}
	if o.yearMin != 0 && o.yearMax != 0 && o.yearMin > o.yearMax {
		return fmt.Errorf("--year-min 不能大于 --year-max")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开输入文件失败: %w", err)
	}
	defer f.Close()

	result, err := ingestion.Load(f, ingestion.LoadOptions{Delimiter: delimiter})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", result.Stats.String())

	filter := disparity.FilterSpec{
		Years:   disparity.YearRange{Min: o.yearMin, Max: o.yearMax},
		Offense: o.offense,
		City:    o.city,
	}.Resolve(result.Records)
	filtered := disparity.ApplyFilter(result.Records, filter)

	out := cmd.OutOrStdout()
	if o.output != "" {
		file, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %w", err)
		}
		defer file.Close()
		out = file
	}
	return write(out, filtered, filter)
}

func (o *cliOptions) writeReport(w io.Writer, records []ingestion.CanonicalCase, filter disparity.FilterSpec) error {
	dim, err := disparity.ParseDimension(o.dimension)
	if err != nil {
		return err
	}
	thresholds, err := o.thresholds()
	if err != nil {
		return err
	}
	report := audit.ComputeReport(records, filter, dim, thresholds)
	return writeJSON(w, report)
}

func (o *cliOptions) writeExport(w io.Writer, kind string, records []ingestion.CanonicalCase) error {
	opts, err := o.exportOptions()
	if err != nil {
		return err
	}
	switch kind {
	case "records":
		return export.WriteRecordsCSV(w, records, opts)
	case "groups":
		dim, err := disparity.ParseDimension(o.dimension)
		if err != nil {
			return err
		}
		return export.WriteGroupSummaryCSV(w, disparity.BuildGroups(records, dim), opts)
	case "intersectional":
		return export.WriteIntersectionalCSV(w, disparity.ComputeIntersectional(records), opts)
	default:
		return fmt.Errorf("未知的导出类型: %s", kind)
	}
}

// thresholds 默认值、阈值文件和 THRESHOLD_* 环境变量依次覆盖
func (o *cliOptions) thresholds() (disparity.Thresholds, error) {
	manager := config.NewThresholdManager(nil, config.WithFile(o.thresholdsFile))
	if err := manager.Load(); err != nil {
		return disparity.Thresholds{}, err
	}
	return manager.Get(), nil
}

func (o *cliOptions) exportOptions() (export.Options, error) {
	delimiter, err := ingestion.ParseDelimiter(o.delimiter)
	if err != nil {
		return export.Options{}, err
	}
	opts := export.Options{Delimiter: delimiter}
	if o.pseudonymKey != "" {
		p, err := export.NewPseudonymizer([]byte(o.pseudonymKey))
		if err != nil {
			return export.Options{}, err
		}
		opts.Pseudonymizer = p
	}
	return opts, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
