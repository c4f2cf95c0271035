package cnrc

const (
	submitPFDEndpoint      = "/submit_pfd"
	namespacedDataEndpoint = "/namespaced_data"
)
