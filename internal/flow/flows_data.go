package flow

import (
	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Article IDs referenced by the built-in flows.
const (
	ArticleAIROIBasics        models.ArticleID = "ai-roi-basics"
	ArticleSmallStartGuide    models.ArticleID = "small-start-guide"
	ArticleSaaSCostReview     models.ArticleID = "saas-cost-review"
	ArticleAutomationWins     models.ArticleID = "automation-quick-wins"
	ArticleStaffTraining      models.ArticleID = "staff-ai-training"
	ArticleToolSelection      models.ArticleID = "tool-selection-checklist"
	ArticleSNSContent         models.ArticleID = "sns-content-with-ai"
	ArticleCustomerFollowUp   models.ArticleID = "customer-follow-up"
	ArticleDataVisibility     models.ArticleID = "data-visibility-first-steps"
	ArticleAIPolicy           models.ArticleID = "ai-usage-policy-template"
	ArticleMedicalPrivacy     models.ArticleID = "medical-data-privacy"
	ArticleClinicalReview     models.ArticleID = "clinical-output-review"
	ArticlePatientChatbot     models.ArticleID = "patient-chatbot-risks"
	ArticleConsentManagement  models.ArticleID = "consent-management"
	ArticleVendorManagement   models.ArticleID = "ai-vendor-management"
	ArticleVisualInspection   models.ArticleID = "ai-visual-inspection"
	ArticlePredictiveUpkeep   models.ArticleID = "predictive-maintenance"
	ArticleDemandForecast     models.ArticleID = "demand-forecasting-intro"
	ArticleInventoryDashboard models.ArticleID = "inventory-dashboard"
)

const articleBaseURL = "https://articles.example.com/"

func article(id models.ArticleID, title string) models.Article {
	return models.Article{ID: id, Title: title, URL: articleBaseURL + string(id)}
}

// DefaultArticles returns the built-in catalog entries. Each call returns a new slice.
func DefaultArticles() []models.Article {
	return []models.Article{
		article(ArticleAIROIBasics, "Estimating the ROI of an AI rollout"),
		article(ArticleSmallStartGuide, "Start small: a 30-day AI pilot plan"),
		article(ArticleSaaSCostReview, "Reviewing recurring SaaS costs"),
		article(ArticleAutomationWins, "Five automation quick wins for busy teams"),
		article(ArticleStaffTraining, "Training staff to work with AI tools"),
		article(ArticleToolSelection, "A checklist for choosing AI tools"),
		article(ArticleSNSContent, "Creating social posts with generative AI"),
		article(ArticleCustomerFollowUp, "Automating customer follow-up messages"),
		article(ArticleDataVisibility, "First steps toward data visibility"),
		article(ArticleAIPolicy, "An AI usage policy template"),
		article(ArticleMedicalPrivacy, "Handling patient data with AI services"),
		article(ArticleClinicalReview, "Reviewing AI output in clinical documents"),
		article(ArticlePatientChatbot, "Risks of patient-facing chatbots"),
		article(ArticleConsentManagement, "Managing consent for AI processing"),
		article(ArticleVendorManagement, "Managing AI vendors and contracts"),
		article(ArticleVisualInspection, "AI visual inspection on the line"),
		article(ArticlePredictiveUpkeep, "Predictive maintenance without big data"),
		article(ArticleDemandForecast, "An introduction to demand forecasting"),
		article(ArticleInventoryDashboard, "Building an inventory dashboard"),
	}
}

func question(prompt string, branches ...Branch) *Node {
	return &Node{Prompt: prompt, Branches: branches}
}

func ask(option string, next *Node) Branch {
	return Branch{Option: option, Next: next}
}

func conclude(option string, ids ...models.ArticleID) Branch {
	return Branch{Option: option, Articles: ids}
}

func quickDiagnosisFlow() *FlowDefinition {
	return &FlowDefinition{
		Keyword:        models.KeywordQuickDiagnosis,
		TotalQuestions: 3,
		Root: question("Which area do you most want to improve?",
			ask("on-site operations/efficiency", question("What is the biggest obstacle?",
				ask("cost/ROI", question("Which cost concern is closest to yours?",
					conclude("initial cost/ROI", ArticleAIROIBasics, ArticleSmallStartGuide),
					conclude("running costs", ArticleSaaSCostReview),
					conclude("staff time", ArticleAutomationWins),
				)),
				ask("staff skills", question("Who needs support first?",
					conclude("frontline staff", ArticleStaffTraining, ArticleAutomationWins),
					conclude("managers", ArticleStaffTraining, ArticleAIPolicy),
					conclude("IT staff", ArticleToolSelection),
				)),
				ask("tool selection", question("Where are you in the selection process?",
					conclude("not started", ArticleToolSelection, ArticleSmallStartGuide),
					conclude("comparing options", ArticleToolSelection),
					conclude("trial underway", ArticleAIROIBasics),
				)),
			)),
			ask("sales/customer acquisition", question("Which channel matters most?",
				ask("web/SNS", question("What takes the most effort?",
					conclude("content creation", ArticleSNSContent),
					conclude("ads", ArticleSNSContent, ArticleAIROIBasics),
					conclude("analytics", ArticleDataVisibility),
				)),
				ask("existing customers", question("What would you like to automate?",
					conclude("follow-up messages", ArticleCustomerFollowUp),
					conclude("reviews", ArticleCustomerFollowUp, ArticleSNSContent),
					conclude("repeat offers", ArticleCustomerFollowUp),
				)),
			)),
			ask("management/planning", question("What do you need first?",
				ask("data visibility", question("Where does your data live today?",
					conclude("spreadsheets only", ArticleDataVisibility),
					conclude("scattered systems", ArticleDataVisibility, ArticleToolSelection),
					conclude("no data yet", ArticleDataVisibility, ArticleSmallStartGuide),
				)),
				ask("AI policy", question("How far along is your policy?",
					conclude("no rules yet", ArticleAIPolicy),
					conclude("draft exists", ArticleAIPolicy, ArticleStaffTraining),
					conclude("need training", ArticleStaffTraining),
				)),
			)),
		),
	}
}

func hospitalAIRiskFlow() *FlowDefinition {
	return &FlowDefinition{
		Keyword:        models.KeywordHospitalAIRisk,
		TotalQuestions: 3,
		Root: question("Where is AI used or planned in your hospital?",
			ask("clinical documentation", question("What worries you most?",
				ask("patient privacy", question("How is patient data handled now?",
					conclude("cloud service", ArticleMedicalPrivacy, ArticleVendorManagement),
					conclude("on-premises", ArticleMedicalPrivacy),
					conclude("not decided", ArticleMedicalPrivacy, ArticleAIPolicy),
				)),
				ask("output accuracy", question("Who reviews AI output?",
					conclude("physicians", ArticleClinicalReview),
					conclude("nurses", ArticleClinicalReview, ArticleStaffTraining),
					conclude("no review yet", ArticleClinicalReview, ArticleAIPolicy),
				)),
			)),
			ask("patient communication", question("Which part concerns you?",
				ask("chatbot answers", question("What do patients ask about most?",
					conclude("symptoms", ArticlePatientChatbot, ArticleClinicalReview),
					conclude("appointments", ArticlePatientChatbot),
					conclude("billing", ArticlePatientChatbot, ArticleMedicalPrivacy),
				)),
				ask("consent", question("How is consent collected today?",
					conclude("paper forms", ArticleConsentManagement),
					conclude("electronic forms", ArticleConsentManagement, ArticleMedicalPrivacy),
					conclude("not collected", ArticleConsentManagement, ArticleAIPolicy),
				)),
			)),
			ask("back-office work", question("What is the main risk?",
				ask("staff adoption", question("How do staff feel about AI?",
					conclude("resistant", ArticleStaffTraining),
					conclude("untrained", ArticleStaffTraining, ArticleAIPolicy),
					conclude("ready", ArticleAutomationWins),
				)),
				ask("vendor management", question("How many AI vendors do you use?",
					conclude("one vendor", ArticleVendorManagement),
					conclude("several vendors", ArticleVendorManagement, ArticleSaaSCostReview),
					conclude("built in-house", ArticleAIPolicy, ArticleClinicalReview),
				)),
			)),
		),
	}
}

func manufacturingDXFlow() *FlowDefinition {
	return &FlowDefinition{
		Keyword:        models.KeywordManufacturingDX,
		TotalQuestions: 3,
		Root: question("Which part of your operation should change first?",
			ask("production line", question("Which task needs help?",
				ask("quality inspection", question("How is inspection done now?",
					conclude("visual checks", ArticleVisualInspection),
					conclude("measurement data", ArticleVisualInspection, ArticleDataVisibility),
					conclude("defect records only", ArticleDataVisibility),
				)),
				ask("equipment maintenance", question("What causes the most downtime?",
					conclude("breakdowns", ArticlePredictiveUpkeep),
					conclude("parts shortages", ArticleInventoryDashboard),
					conclude("paper maintenance logs", ArticlePredictiveUpkeep, ArticleDataVisibility),
				)),
			)),
			ask("supply chain", question("Where is the pain?",
				ask("demand forecasting", question("What makes forecasting hard?",
					conclude("seasonal swings", ArticleDemandForecast),
					conclude("new products", ArticleDemandForecast, ArticleSmallStartGuide),
					conclude("no forecasting yet", ArticleDemandForecast, ArticleDataVisibility),
				)),
				ask("inventory", question("What happens most often?",
					conclude("overstock", ArticleInventoryDashboard, ArticleDemandForecast),
					conclude("shortages", ArticleInventoryDashboard),
					conclude("manual counts", ArticleInventoryDashboard, ArticleAutomationWins),
				)),
			)),
		),
	}
}

// DefaultFlows returns fresh copies of the built-in flow definitions.
func DefaultFlows() []*FlowDefinition {
	return []*FlowDefinition{
		quickDiagnosisFlow(),
		hospitalAIRiskFlow(),
		manufacturingDXFlow(),
	}
}

// DefaultTable builds the table of built-in flows. The definitions are unique by
// construction, so an error here is a programming mistake.
func DefaultTable() *Table {
	t, err := NewTable(DefaultFlows()...)
	if err != nil {
		panic(err)
	}
	return t
}
