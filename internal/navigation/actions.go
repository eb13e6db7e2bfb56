package navigation

// Action is a user operation a view can offer for itself or for one of its
// rows. Which actions are offered depends on the data shown.
type Action int

const (
	ActionRefresh Action = iota
	ActionAddFolder
	ActionRescanFolder
	ActionRemoveFolder
	ActionCreateWorkingSetFromView
	ActionRemoveWorkingSet
	ActionRemoveFromWorkingSet
	ActionCreateAutoMixFromView
	ActionRemoveMix
	ActionRemoveFromMix
	ActionRenderMix
	ActionAnalyseBPM
	ActionRevealFile
)

var actionNames = map[Action]string{
	ActionRefresh:                  "Refresh",
	ActionAddFolder:                "Add Folder",
	ActionRescanFolder:             "Rescan Folder",
	ActionRemoveFolder:             "Remove Folder",
	ActionCreateWorkingSetFromView: "Create Working Set From View",
	ActionRemoveWorkingSet:         "Remove Working Set",
	ActionRemoveFromWorkingSet:     "Remove From Working Set",
	ActionCreateAutoMixFromView:    "Create Auto Mix From View",
	ActionRemoveMix:                "Remove Mix",
	ActionRemoveFromMix:            "Remove From Mix",
	ActionRenderMix:                "Render Mix",
	ActionAnalyseBPM:               "Analyse BPM",
	ActionRevealFile:               "Reveal File",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "Unknown"
}

// HasAction reports whether actions contains a.
func HasAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
