package domain

// Identifiers of the sample workflow and the storage extension applied to it.
const (
	SampleWorkflowID = "sample_workflow"

	StateSampleDue      = "sample_due"
	StateSampleReceived = "sample_received"
	StateStored         = "stored"

	TransitionStore   = "store"
	TransitionRecover = "recover"
)

// Permissions managed on sample workflow states.
const (
	PermAddAnalysis        = "AddAnalysis"
	PermAddAttachment      = "AddAttachment"
	PermCancelAndReinstate = "CancelAndReinstate"
	PermEditAR             = "EditAR"
	PermEditFieldResults   = "EditFieldResults"
	PermEditResults        = "EditResults"
	PermPreserveSample     = "PreserveSample"
	PermPublish            = "Publish"
	PermScheduleSampling   = "ScheduleSampling"
	PermView               = "View"
	PermStoreSample        = "StoreSample"
)

// SettingHiddenActions is the repository settings key listing navigation actions hidden by install.
const SettingHiddenActions = "hidden_actions"
