package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safebites/safebites-api/internal/service"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <place-id>",
	Short: "Force a safety-score recomputation for one place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		detail, err := env.Service.ReviewDetail(cmd.Context(), service.ReviewDetailRequest{
			PlaceID:      args[0],
			ForceRefresh: true,
		})
		if err != nil {
			return err
		}

		fields := []zap.Field{
			zap.String("place_id", args[0]),
			zap.String("source", detail.Source),
			zap.Int("relevant_count", detail.RelevantCount),
			zap.Int("community_count", detail.CommunityCount),
		}
		if detail.WiseBitesScore != nil {
			fields = append(fields, zap.Float64("wise_bites_score", *detail.WiseBitesScore))
		}
		zap.L().Info("refresh complete", fields...)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
