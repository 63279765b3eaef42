package shared

// Feature permissions gating product areas.
const (
	PermViewGameSchedule = "feature:view_game_schedule"
	PermViewAITips       = "feature:view_ai_tips"
	PermAdvancedAnalysis = "feature:access_advanced_analysis"
	PermBetTracker       = "feature:bet_tracker"
	PermRealtimeAlerts   = "feature:realtime_alerts"
)

// DefaultProtectedRoleName is the technical name of the role that can never be edited or deleted.
const DefaultProtectedRoleName = "full_admin"

// FeatureScopes lists every feature permission known to the product.
func FeatureScopes() []string {
	return []string{
		PermViewGameSchedule,
		PermViewAITips,
		PermAdvancedAnalysis,
		PermBetTracker,
		PermRealtimeAlerts,
	}
}
