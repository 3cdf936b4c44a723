package classify

// Prompts for the model paths. Each instructs the model to return a single
// JSON object matching the wire shapes in privilege.go and hotdoc.go; any
// deviation is treated as a failed call.

const privilegePromptTemplate = `You are a privilege review specialist assisting with discovery in the matter %q for client %q.

Analyze the document below and judge whether it is protected by legal privilege.

Respond with a single JSON object and nothing else:
{
  "is_privileged": boolean,
  "privilege_type": "attorney-client" | "work-product" | "none",
  "confidence": number between 0 and 100,
  "basis": [short reasons],
  "potential_waiver": boolean,
  "waiver_risk": "low" | "medium" | "high"
}

Document filename: %s
Document text:
%s`

const hotDocPromptTemplate = `You are a litigation risk analyst reviewing discovery documents.

Rate the litigation risk of the document below: could it be damaging if produced to opposing counsel?

Respond with a single JSON object and nothing else:
{
  "is_hot": boolean,
  "risk_level": "low" | "medium" | "high" | "critical",
  "risk_score": number between 0 and 100,
  "categories": [risk category tags],
  "excerpts": [verbatim damaging passages, at most 3],
  "recommended_actions": [short action items]
}

Document filename: %s
Document text:
%s`
