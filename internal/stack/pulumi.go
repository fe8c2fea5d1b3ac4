package stack

import (
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Export はスタックの主要な値とYAML描画結果をPulumiのスタック出力として公開する。
// 実際のリソース作成はスタック出力を読むプロビジョニングエンジン側で行う。
func (s *Stack) Export(ctx *pulumi.Context) error {
	manifest, err := s.Render(FormatYAML)
	if err != nil {
		return fmt.Errorf("スタックの描画に失敗: %w", err)
	}

	buckets := pulumi.StringMap{}
	for _, b := range s.Buckets {
		buckets[b.ID] = pulumi.String(b.Name)
	}
	tables := pulumi.StringMap{}
	for _, t := range s.Tables {
		tables[t.ID] = pulumi.String(t.Name)
	}
	jobs := pulumi.StringArray{}
	for _, j := range s.Jobs {
		jobs = append(jobs, pulumi.String(j.Name))
	}
	tags := pulumi.StringMap{}
	for k, v := range s.Tags {
		tags[k] = pulumi.String(v)
	}

	ctx.Export("name", pulumi.String(s.Name))
	ctx.Export("tags", tags)
	ctx.Export("buckets", buckets)
	ctx.Export("tables", tables)
	ctx.Export("jobs", jobs)
	ctx.Export("function", pulumi.String(s.Function.Name))
	ctx.Export("gate", pulumi.Bool(s.EdgeFunction != nil))
	ctx.Export("domainNames", pulumi.ToStringArray(s.Distribution.DomainNames))
	if s.Global.Certificate != nil {
		ctx.Export("certificateDomain", pulumi.String(s.Global.Certificate.DomainName))
	}
	ctx.Export("manifest", pulumi.String(string(manifest)))
	return nil
}
